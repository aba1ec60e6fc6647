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

type AuditHandler struct {
	auditService service.AuditService
	guard        *middleware.Guard
}

func NewAuditHandler(auditService service.AuditService, guard *middleware.Guard) *AuditHandler {
	return &AuditHandler{auditService: auditService, guard: guard}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.guard.RequirePermission(rbac.ReadAuditLogs))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated audit records with the acting user preloaded
// @Summary      Get audit logs
// @Description  Retrieves audit logs, newest first, optionally filtered by action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        action  query     string  false  "Only this action, e.g. CHANGE_ROLE"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit, c.Query("action"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.OK(c, http.StatusOK, p.Body("logs", logs, total))
}
