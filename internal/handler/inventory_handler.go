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

type InventoryHandler struct {
	inventoryService service.InventoryService
	guard            *middleware.Guard
}

func NewInventoryHandler(inventoryService service.InventoryService, guard *middleware.Guard) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, guard: guard}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/api/inventory")
	{
		inventory.GET("", h.guard.RequirePermission(rbac.ReadInventory), h.ListInventory)
		inventory.GET("/summary", h.guard.RequirePermission(rbac.ReadDashboard), h.GetSummary)
		inventory.GET("/:productId", h.guard.RequirePermission(rbac.ReadInventory), h.GetInventory)
		inventory.GET("/:productId/ledger", h.guard.RequirePermission(rbac.ReadStockLedger), h.GetLedger)
		inventory.PUT("/:productId/thresholds", h.guard.RequirePermission(rbac.WriteInventory), h.UpdateThresholds)
		inventory.POST("/adjust", h.guard.RequirePermission(rbac.WriteInventory), h.AdjustStock)
		inventory.POST("/stocktake", h.guard.RequireAll(rbac.WriteInventory, rbac.CountInventory), h.Stocktake)
	}
}

// ListInventory handles retrieving the inventory view
// @Summary      List inventory
// @Description  Lists every inventory row joined with its product, ordered by product name, with derived stock status
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Search by product name or SKU"
// @Success      200     {object}  response.Response{data=object}
// @Failure      404     {object}  response.Response
// @Failure      500     {object}  response.Response
// @Router       /api/inventory [get]
func (h *InventoryHandler) ListInventory(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.inventoryService.ListInventory(c.Request.Context(), p.Page, p.Limit, p.Search)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, p.Body("items", items, total))
}

// GetInventory returns a single inventory row
// @Summary      Get inventory row
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        productId  path      string  true  "Product ID"
// @Success      200        {object}  response.Response{data=service.InventoryItem}
// @Failure      404        {object}  response.Response
// @Router       /api/inventory/{productId} [get]
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	item, err := h.inventoryService.GetInventory(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, http.StatusOK, item)
}

// AdjustStock applies a signed quantity change
// @Summary      Adjust stock
// @Description  Adds a signed whole-number delta to a product's stock and records an ADJUSTMENT ledger entry
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AdjustStockRequest  true  "Adjustment"
// @Success      200      {object}  response.Response{data=service.InventoryItem}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/inventory/adjust [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	item, err := h.inventoryService.AdjustStock(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, item)
}

// Stocktake records a physical count
// @Summary      Record stocktake
// @Description  Sets a product's stock to the counted quantity and records a STOCKTAKE ledger entry for the difference
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.StocktakeRequest  true  "Count"
// @Success      200      {object}  response.Response{data=service.InventoryItem}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/inventory/stocktake [post]
func (h *InventoryHandler) Stocktake(c *gin.Context) {
	var req service.StocktakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	item, err := h.inventoryService.Stocktake(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, item)
}

// UpdateThresholds changes min quantity and reorder point
// @Summary      Update stock thresholds
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        productId  path      string                           true  "Product ID"
// @Param        payload    body      service.UpdateThresholdsRequest  true  "Thresholds"
// @Success      200        {object}  response.Response{data=service.InventoryItem}
// @Failure      400        {object}  response.Response
// @Failure      404        {object}  response.Response
// @Router       /api/inventory/{productId}/thresholds [put]
func (h *InventoryHandler) UpdateThresholds(c *gin.Context) {
	var req service.UpdateThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	item, err := h.inventoryService.UpdateThresholds(c.Request.Context(), middleware.UserID(c), c.Param("productId"), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, item)
}

// GetLedger returns the stock movement history of a product
// @Summary      Stock ledger
// @Description  Lists ledger entries of one product, newest first
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        productId  path      string  true   "Product ID"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=service.LedgerPage}
// @Failure      404        {object}  response.Response
// @Router       /api/inventory/{productId}/ledger [get]
func (h *InventoryHandler) GetLedger(c *gin.Context) {
	p := pagination.Parse(c)

	page, err := h.inventoryService.GetLedger(c.Request.Context(), c.Param("productId"), p.Page, p.Limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, page)
}

// GetSummary returns dashboard figures
// @Summary      Inventory summary
// @Description  Counts per stock status, expired products and total stock value
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.InventorySummary}
// @Failure      404  {object}  response.Response
// @Router       /api/inventory/summary [get]
func (h *InventoryHandler) GetSummary(c *gin.Context) {
	summary, err := h.inventoryService.Summary(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.OK(c, http.StatusOK, summary)
}
