package api

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helpdesk-io/helpdesk-ce/internal/auth"
	"github.com/helpdesk-io/helpdesk-ce/internal/config"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/middleware"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
	"github.com/helpdesk-io/helpdesk-ce/internal/notifications"
)

// UserStore is the user persistence the handlers need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	RegenerateAccessCode(ctx context.Context, userID int64) (string, error)
	MarkCodeSent(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
}

// TicketStore is the ticket persistence the handlers need.
type TicketStore interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	GetByTN(ctx context.Context, tn string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	ListHistory(ctx context.Context, ticketID int64) ([]models.TicketHistory, error)
}

// AttachmentStore is the attachment persistence the handlers need.
type AttachmentStore interface {
	Insert(ctx context.Context, a *models.TicketAttachment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]models.TicketAttachment, error)
	CountByTicket(ctx context.Context, ticketID int64) (int, error)
}

// Handlers bundles the HTTP handlers with their collaborators.
type Handlers struct {
	users       UserStore
	tickets     TicketStore
	attachments AttachmentStore
	engine      *lifecycle.Engine
	center      *notifications.Center
	jwtManager  *auth.JWTManager
	upload      config.UploadConfig
	authCfg     config.AuthConfig
	logger      *log.Logger
}

func NewHandlers(
	users UserStore,
	tickets TicketStore,
	attachments AttachmentStore,
	engine *lifecycle.Engine,
	center *notifications.Center,
	jwtManager *auth.JWTManager,
	upload config.UploadConfig,
	authCfg config.AuthConfig,
	logger *log.Logger,
) *Handlers {
	if logger == nil {
		logger = log.Default()
	}
	return &Handlers{
		users:       users,
		tickets:     tickets,
		attachments: attachments,
		engine:      engine,
		center:      center,
		jwtManager:  jwtManager,
		upload:      upload,
		authCfg:     authCfg,
		logger:      logger,
	}
}

// requestTimeout bounds handler-initiated database work.
const requestTimeout = 10 * time.Second

func requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, requestTimeout)
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}
