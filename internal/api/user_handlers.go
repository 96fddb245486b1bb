package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// HandleGetUser handles GET /api/v1/users/:id. Technician only.
func (h *Handlers) HandleGetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// HandleRegenerateAccessCode handles POST /api/v1/users/:id/access-code.
// Issues a fresh code, reactivates it and resets the send counter.
// Technician only.
func (h *Handlers) HandleRegenerateAccessCode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	code, err := h.users.RegenerateAccessCode(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"access_code": code,
	})
}

// HandleSendAccessCode handles POST /api/v1/users/:id/access-code/send.
// Records that the code was handed out once more; the delivery itself is the
// dispatcher's job. Technician only.
func (h *Handlers) HandleSendAccessCode(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if !user.IsCodeActive {
		respondError(c, http.StatusConflict, "Access code is inactive, regenerate it first")
		return
	}
	if max := h.authCfg.AccessCode.MaxSends; max > 0 && user.CodeSentCount >= max {
		respondError(c, http.StatusConflict, "Access code send limit reached, regenerate it first")
		return
	}

	if err := h.users.MarkCodeSent(ctx, id); err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"code_sent_count": user.CodeSentCount + 1,
	})
}

// HandleDeleteUser handles DELETE /api/v1/users/:id. The user's tickets go
// with them; history rows survive with a null actor. Technician only.
func (h *Handlers) HandleDeleteUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	actor := currentUser(c)
	if actor != nil && actor.ID == id {
		respondError(c, http.StatusConflict, "Cannot delete your own account")
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	if err := h.users.Delete(ctx, id); err != nil {
		respondDomainError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
