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

type ReceiptHandler struct {
	receiptService service.ReceiptService
	guard          *middleware.Guard
}

func NewReceiptHandler(receiptService service.ReceiptService, guard *middleware.Guard) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService, guard: guard}
}

func (h *ReceiptHandler) RegisterRoutes(router *gin.RouterGroup) {
	receipts := router.Group("/api/goods-receipts")
	{
		receipts.GET("", h.guard.RequirePermission(rbac.ReadGoodsReceipts), h.ListReceipts)
		receipts.POST("", h.guard.RequireAll(rbac.WriteGoodsReceipts, rbac.WriteInventory), h.CreateReceipt)
	}
}

// ListReceipts returns goods receipts, newest first
// @Summary      List goods receipts
// @Tags         goods-receipts
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/goods-receipts [get]
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	p := pagination.Parse(c)

	receipts, total, err := h.receiptService.ListReceipts(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, p.Body("receipts", receipts, total))
}

// CreateReceipt records received goods and posts every line to stock
// @Summary      Create goods receipt
// @Description  Records a goods receipt; each line adds stock through a RECEIPT ledger entry in one transaction
// @Tags         goods-receipts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReceiptRequest  true  "Goods receipt"
// @Success      201      {object}  response.Response{data=model.GoodsReceipt}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/goods-receipts [post]
func (h *ReceiptHandler) CreateReceipt(c *gin.Context) {
	var req service.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	receipt, err := h.receiptService.CreateReceipt(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusCreated, receipt)
}
