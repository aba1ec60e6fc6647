package handler

import (
	"net/http"

	"labinventory/internal/middleware"
	"labinventory/pkg/rbac"
	"labinventory/pkg/response"

	"github.com/gin-gonic/gin"
)

// RoleView is a role with its effective permission set
type RoleView struct {
	Name        rbac.Role         `json:"name"`
	Description string            `json:"description"`
	Superuser   bool              `json:"superuser"`
	Permissions []rbac.Permission `json:"permissions"`
}

// RoleHandler serves the permission catalog. Roles and permissions are
// defined in the catalog file, so there is nothing to create or edit here.
type RoleHandler struct {
	catalog *rbac.Catalog
	guard   *middleware.Guard
}

func NewRoleHandler(catalog *rbac.Catalog, guard *middleware.Guard) *RoleHandler {
	return &RoleHandler{catalog: catalog, guard: guard}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/permissions/catalog", h.guard.RequirePermission(rbac.AccessHome), h.GetCatalog)
	router.GET("/api/roles", h.guard.RequireAny(rbac.ReadUsers, rbac.WriteUsers), h.ListRoles)
}

// GetCatalog returns the catalog document every UI process loads
// @Summary      Permission catalog
// @Description  Returns the versioned role and permission catalog the server enforces
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=rbac.Document}
// @Failure      404  {object}  response.Response
// @Router       /api/permissions/catalog [get]
func (h *RoleHandler) GetCatalog(c *gin.Context) {
	response.OK(c, http.StatusOK, h.catalog.Document())
}

// ListRoles returns all roles with their permissions
// @Summary      List roles
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]RoleView}
// @Failure      404  {object}  response.Response
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	doc := h.catalog.Document()
	roles := make([]RoleView, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		roles = append(roles, RoleView{
			Name:        r.Name,
			Description: r.Description,
			Superuser:   r.Superuser,
			Permissions: h.catalog.Permissions(r.Name),
		})
	}
	response.OK(c, http.StatusOK, map[string]interface{}{
		"version": h.catalog.Version(),
		"roles":   roles,
	})
}
