package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
)

// HandleStartWork handles POST /api/v1/tickets/:id/start. Technician only,
// enforced by the engine.
func (h *Handlers) HandleStartWork(c *gin.Context) {
	h.transition(c, lifecycle.Request{Event: lifecycle.EventStartWork})
}

type scheduleVisitRequest struct {
	VisitDate string `json:"visit_date" binding:"required"` // YYYY-MM-DD
	VisitTime string `json:"visit_time" binding:"required"` // HH:MM
}

// HandleScheduleVisit handles POST /api/v1/tickets/:id/visit.
func (h *Handlers) HandleScheduleVisit(c *gin.Context) {
	var req scheduleVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	visitDate, err := time.Parse("2006-01-02", req.VisitDate)
	if err != nil {
		respondError(c, http.StatusBadRequest, "visit_date must be YYYY-MM-DD")
		return
	}
	if _, err := time.Parse("15:04", req.VisitTime); err != nil {
		respondError(c, http.StatusBadRequest, "visit_time must be HH:MM")
		return
	}

	h.transition(c, lifecycle.Request{
		Event:     lifecycle.EventScheduleVisit,
		VisitDate: &visitDate,
		VisitTime: req.VisitTime,
	})
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// HandleReject handles POST /api/v1/tickets/:id/reject.
func (h *Handlers) HandleReject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.transition(c, lifecycle.Request{
		Event:  lifecycle.EventReject,
		Reason: req.Reason,
	})
}

type closeRequest struct {
	Note string `json:"note" binding:"required"`
}

// HandleClose handles POST /api/v1/tickets/:id/close.
func (h *Handlers) HandleClose(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.transition(c, lifecycle.Request{
		Event: lifecycle.EventClose,
		Note:  req.Note,
	})
}

type noteRequest struct {
	Note string `json:"note" binding:"required"`
}

// HandleAddNote handles POST /api/v1/tickets/:id/notes. Allowed for the
// owner or a technician on a closed ticket.
func (h *Handlers) HandleAddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	h.transition(c, lifecycle.Request{
		Event: lifecycle.EventAddNote,
		Note:  req.Note,
	})
}

// transition fills in ticket and actor, runs the engine and writes the
// updated ticket back.
func (h *Handlers) transition(c *gin.Context, req lifecycle.Request) {
	user := currentUser(c)
	if user == nil {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	req.TicketID = id
	req.Actor = user

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	ticket, err := h.engine.Transition(ctx, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, ticket)
}
