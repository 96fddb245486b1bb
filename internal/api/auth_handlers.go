package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// HandleRegister handles POST /api/v1/auth/register. New accounts are always
// requesters; technicians are provisioned out of band.
func (h *Handlers) HandleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if minLen := h.authCfg.Password.MinLength; len(req.Password) < minLen {
		respondError(c, http.StatusBadRequest,
			fmt.Sprintf("Password must be at least %d characters", minLen))
		return
	}

	user := &models.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleRequester,
	}
	if err := user.SetPasswordWithCost(req.Password, h.authCfg.Password.BcryptCost); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	if err := h.users.Create(ctx, user); err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin handles POST /api/v1/auth/login.
func (h *Handlers) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.issueTokens(c, user)
}

type codeLoginRequest struct {
	AccessCode string `json:"access_code" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
}

// HandleCodeLogin handles POST /api/v1/auth/code. Requesters can sign in
// with the access code they were sent instead of a password.
func (h *Handlers) HandleCodeLogin(c *gin.Context) {
	var req codeLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil || !user.IsCodeActive || user.AccessCode != req.AccessCode {
		respondError(c, http.StatusUnauthorized, "Invalid access code")
		return
	}

	h.issueTokens(c, user)
}

func (h *Handlers) issueTokens(c *gin.Context, user *models.User) {
	token, err := h.jwtManager.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	refresh, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondData(c, http.StatusOK, gin.H{
		"token":         token,
		"refresh_token": refresh,
		"user":          user,
	})
}

// HandleMe handles GET /api/v1/me.
func (h *Handlers) HandleMe(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	respondData(c, http.StatusOK, user)
}
