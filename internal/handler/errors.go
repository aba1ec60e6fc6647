package handler

import (
	"errors"
	"net/http"

	"labinventory/internal/service"
	"labinventory/pkg/response"

	"github.com/gin-gonic/gin"
)

// writeServiceError maps service error categories onto HTTP statuses.
// Transaction failures get a generic message; the cause was logged by the service.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.Fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		response.Fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Fail(c, http.StatusConflict, err.Error())
	default:
		response.Fail(c, http.StatusInternalServerError, response.MsgInternal)
	}
}

func badPayload(c *gin.Context, err error) {
	response.Fail(c, http.StatusBadRequest, response.MsgInvalidPayload+": "+err.Error())
}
