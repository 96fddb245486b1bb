// Package api contains the HTTP handlers and router for the help desk
// service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/notifications"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// respondDomainError translates the typed failures of the core packages into
// HTTP responses. Anything unrecognized is a 500.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrPreconditionFailed):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, lifecycle.ErrPermissionDenied):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, notifications.ErrNotAddressee):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrDuplicateEmail):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrCreationFailed):
		respondError(c, http.StatusInternalServerError, "Creation failed, please retry")
	default:
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
