package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

type createTicketRequest struct {
	Description       string `json:"description" binding:"required"`
	Category          string `json:"category" binding:"required"`
	Priority          string `json:"priority" binding:"required"`
	AffectedEquipment string `json:"affected_equipment" binding:"required"`
	SerialNumber      string `json:"serial_number"`
}

// HandleCreateTicket handles POST /api/v1/tickets. The authenticated user
// becomes the immutable owner.
func (h *Handlers) HandleCreateTicket(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	category := models.TicketCategory(strings.ToUpper(req.Category))
	if !category.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown category")
		return
	}
	priority := models.TicketPriority(strings.ToUpper(req.Priority))
	if !priority.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown priority")
		return
	}

	ticket := &models.Ticket{
		UserID:            user.ID,
		Description:       req.Description,
		Category:          category,
		Priority:          priority,
		AffectedEquipment: req.AffectedEquipment,
	}
	if req.SerialNumber != "" {
		ticket.SerialNumber = &req.SerialNumber
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	if err := h.tickets.Create(ctx, ticket); err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusCreated, ticket)
}

// HandleListTickets handles GET /api/v1/tickets. Requesters see only their
// own tickets; technicians see everything and may filter by owner.
func (h *Handlers) HandleListTickets(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	filter := models.TicketFilter{
		Status:   models.TicketStatus(strings.ToUpper(c.Query("status"))),
		Category: models.TicketCategory(strings.ToUpper(c.Query("category"))),
		Priority: models.TicketPriority(strings.ToUpper(c.Query("priority"))),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown status")
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown category")
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		respondError(c, http.StatusBadRequest, "Unknown priority")
		return
	}

	if user.IsTechnician() {
		if owner, ok := queryInt64(c, "owner_id"); ok {
			filter.OwnerID = owner
		}
	} else {
		filter.OwnerID = user.ID
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	tickets, err := h.tickets.List(ctx, filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, tickets)
}

// HandleGetTicket handles GET /api/v1/tickets/:id. Requesters can only read
// their own tickets.
func (h *Handlers) HandleGetTicket(c *gin.Context) {
	ticket, ok := h.loadVisibleTicket(c)
	if !ok {
		return
	}
	respondData(c, http.StatusOK, ticket)
}

// HandleGetTicketByNumber handles GET /api/v1/tickets/number/:tn.
func (h *Handlers) HandleGetTicketByNumber(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	ticket, err := h.tickets.GetByTN(ctx, c.Param("tn"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if !user.IsTechnician() && ticket.UserID != user.ID {
		respondError(c, http.StatusNotFound, "Not found")
		return
	}

	respondData(c, http.StatusOK, ticket)
}

// HandleListHistory handles GET /api/v1/tickets/:id/history. Newest first.
func (h *Handlers) HandleListHistory(c *gin.Context) {
	ticket, ok := h.loadVisibleTicket(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	history, err := h.tickets.ListHistory(ctx, ticket.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, history)
}

// loadVisibleTicket fetches the :id ticket and enforces owner visibility.
// Non-owners get a 404, not a 403, so ticket existence is not leaked.
func (h *Handlers) loadVisibleTicket(c *gin.Context) (*models.Ticket, bool) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return nil, false
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	ticket, err := h.tickets.GetTicket(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return nil, false
	}
	if !user.IsTechnician() && ticket.UserID != user.ID {
		respondError(c, http.StatusNotFound, "Not found")
		return nil, false
	}

	return ticket, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}
