package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"maktaba-storefront/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: msg})
}

// abortDomainError maps the domain error taxonomy onto HTTP statuses.
func abortDomainError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrValidation):
		abortError(c, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		abortError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		abortError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrTransientStore):
		c.Header("Retry-After", "1")
		abortError(c, http.StatusServiceUnavailable, "store_unavailable", "cart storage is temporarily unavailable")
	default:
		abortError(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
