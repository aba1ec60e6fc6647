package handler

import (
	"net/http"

	"labinventory/internal/middleware"
	"labinventory/internal/service"
	"labinventory/pkg/pagination"
	"labinventory/pkg/rbac"
	"labinventory/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProductHandler struct {
	productService service.ProductService
	guard          *middleware.Guard
}

func NewProductHandler(productService service.ProductService, guard *middleware.Guard) *ProductHandler {
	return &ProductHandler{productService: productService, guard: guard}
}

func (h *ProductHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/api/products")
	{
		products.GET("", h.guard.RequirePermission(rbac.ReadProducts), h.GetProducts)
		products.POST("", h.guard.RequirePermission(rbac.WriteProducts), h.CreateProduct)
	}
}

// GetProducts handles retrieving paginated products
// @Summary      Get products
// @Description  Retrieves a paginated list of products with their stock mirror
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by product name or SKU"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/products [get]
func (h *ProductHandler) GetProducts(c *gin.Context) {
	p := pagination.Parse(c)

	products, total, err := h.productService.ListProducts(c.Request.Context(), p.Page, p.Limit, p.Search)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, p.Body("products", products, total))
}

// CreateProduct creates a product and its inventory record
// @Summary      Create product
// @Description  Creates a product with an inventory record; initial stock is booked in the stock ledger
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/products [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusCreated, product)
}
