package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleListUnreadNotifications handles GET /api/v1/notifications. Returns
// the caller's unread notifications, newest first.
func (h *Handlers) HandleListUnreadNotifications(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	items, err := h.center.ListUnread(ctx, user.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, items)
}

// HandleMarkNotificationRead handles POST /api/v1/notifications/:id/read.
// Only the addressee can mark a notification read.
func (h *Handlers) HandleMarkNotificationRead(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	if err := h.center.MarkRead(ctx, id, user.ID); err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"read": true})
}
