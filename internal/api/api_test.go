package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/helpdesk-io/helpdesk-ce/internal/auth"
	"github.com/helpdesk-io/helpdesk-ce/internal/config"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/middleware"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
	"github.com/helpdesk-io/helpdesk-ce/internal/notifications"
	"github.com/helpdesk-io/helpdesk-ce/internal/repository"
)

// memoryTickets adapts the development store to the handler-facing ticket
// interface.
type memoryTickets struct {
	*repository.MemoryStore
}

func (m memoryTickets) Create(ctx context.Context, ticket *models.Ticket) error {
	return m.CreateTicket(ctx, ticket)
}

func (m memoryTickets) GetByTN(ctx context.Context, tn string) (*models.Ticket, error) {
	tickets, err := m.List(ctx, models.TicketFilter{})
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].TN == tn {
			return &tickets[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

type memoryUsers struct {
	*repository.MemoryStore
}

func (m memoryUsers) Create(ctx context.Context, user *models.User) error {
	return m.CreateUser(ctx, user)
}

func (m memoryUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return m.GetUser(ctx, id)
}

func (m memoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.GetUserByEmail(ctx, email)
}

func (m memoryUsers) Delete(ctx context.Context, userID int64) error {
	return m.DeleteUser(ctx, userID)
}

type memoryAttachments struct {
	mu    sync.Mutex
	items []models.TicketAttachment
}

func (m *memoryAttachments) Insert(_ context.Context, a *models.TicketAttachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.items) + 1)
	a.UploadedAt = time.Now().UTC()
	m.items = append(m.items, *a)
	return nil
}

func (m *memoryAttachments) ListByTicket(_ context.Context, ticketID int64) ([]models.TicketAttachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TicketAttachment
	for _, a := range m.items {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryAttachments) CountByTicket(_ context.Context, ticketID int64) (int, error) {
	list, _ := m.ListByTicket(context.Background(), ticketID)
	return len(list), nil
}

type testServer struct {
	router *Router
	store  *repository.MemoryStore
	jwt    *auth.JWTManager
	tech   *models.User
	req    *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewMemoryStore()
	tickets := memoryTickets{store}
	users := memoryUsers{store}
	jwtManager := auth.NewJWTManager("test-secret", "helpdesk", time.Hour, time.Hour)

	engine := lifecycle.NewEngine(store, 30, nil)
	center := notifications.NewCenter(store)

	authCfg := config.AuthConfig{}
	authCfg.Password.MinLength = 8
	authCfg.Password.BcryptCost = bcrypt.MinCost
	authCfg.AccessCode.MaxSends = 3

	handlers := NewHandlers(users, tickets, &memoryAttachments{}, engine, center,
		jwtManager, config.UploadConfig{
			Path: t.TempDir(), MaxSize: 5 << 20, MaxPerTicket: 5,
			AllowedTypes: []string{"image/jpeg", "image/png"},
		}, authCfg, nil)
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, users)

	router := NewRouter(handlers, authMiddleware, config.MetricsConfig{})
	router.SetupRoutes()

	ts := &testServer{router: router, store: store, jwt: jwtManager}

	ts.tech = &models.User{Email: "tech@helpdesk.local", Role: models.RoleTechnician}
	require.NoError(t, store.CreateUser(ctx, ts.tech))
	ts.req = &models.User{Email: "req@helpdesk.local", Role: models.RoleRequester}
	require.NoError(t, ts.req.SetPassword("hunter2secret"))
	require.NoError(t, store.CreateUser(ctx, ts.req))

	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, actor *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := ts.jwt.GenerateToken(actor.ID, actor.Email, string(actor.Role))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.Engine().ServeHTTP(w, req)
	return w
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", w.Body.String())
	return envelope.Data
}

func (ts *testServer) createTicket(t *testing.T) int64 {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/tickets", gin.H{
		"description":        "Screen flickers",
		"category":           "computer",
		"priority":           "high",
		"affected_equipment": "iMac",
	}, ts.req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataField(t, w)
	return int64(data["id"].(float64))
}

func TestTicketEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("create assigns number and owner", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/tickets", gin.H{
			"description":        "Screen flickers",
			"category":           "computer",
			"priority":           "high",
			"affected_equipment": "iMac",
		}, ts.req)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		data := dataField(t, w)
		assert.Regexp(t, `^TCK-\d{4}-\d{4}$`, data["tn"])
		assert.Equal(t, "OPEN", data["status"])
		assert.Equal(t, float64(ts.req.ID), data["user_id"])
	})

	t.Run("unauthenticated requests are rejected", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/tickets", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("requester sees only own tickets", func(t *testing.T) {
		other := &models.User{Email: "other@helpdesk.local", Role: models.RoleRequester}
		require.NoError(t, ts.store.CreateUser(context.Background(), other))

		id := ts.createTicket(t)
		w := ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d", id), nil, other)
		assert.Equal(t, http.StatusNotFound, w.Code, "existence must not leak")

		w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/v1/tickets/%d", id), nil, ts.tech)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestTransitionEndpointErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createTicket(t)

	t.Run("permission denied is 403", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/start", id), nil, ts.req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid transition is 409", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/close", id),
			gin.H{"note": "done"}, ts.tech)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing precondition is 422", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/reject", id),
			gin.H{"reason": "   "}, ts.tech)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("full flow start then close", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/start", id), nil, ts.tech)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "IN_PROGRESS", dataField(t, w)["status"])

		w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/tickets/%d/close", id),
			gin.H{"note": "replaced cable"}, ts.tech)
		require.Equal(t, http.StatusOK, w.Code)
		data := dataField(t, w)
		assert.Equal(t, "CLOSED", data["status"])
		assert.NotNil(t, data["closed_at"])
	})

	t.Run("owner notification surfaced and read-protected", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/notifications", nil, ts.req)
		require.Equal(t, http.StatusOK, w.Code)
		var envelope struct {
			Data []models.Notification `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		require.NotEmpty(t, envelope.Data)

		nid := envelope.Data[0].ID
		w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", nid), nil, ts.tech)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", nid), nil, ts.req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("register then login", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
			"email":      "new@helpdesk.local",
			"password":   "longenoughpw",
			"first_name": "New",
			"last_name":  "User",
		}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = ts.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
			"email":    "new@helpdesk.local",
			"password": "longenoughpw",
		}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := dataField(t, w)
		assert.NotEmpty(t, data["token"])
	})

	t.Run("password below the configured minimum", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
			"email":      "short@helpdesk.local",
			"password":   "short",
			"first_name": "Sho",
			"last_name":  "Rt",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
			"email":    "req@helpdesk.local",
			"password": "wrong-password",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("access code login", func(t *testing.T) {
		user, err := ts.store.GetUser(context.Background(), ts.req.ID)
		require.NoError(t, err)

		w := ts.do(t, http.MethodPost, "/api/v1/auth/code", gin.H{
			"email":       user.Email,
			"access_code": user.AccessCode,
		}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = ts.do(t, http.MethodPost, "/api/v1/auth/code", gin.H{
			"email":       user.Email,
			"access_code": "WRONGCODE123",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("access code management is technician only", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/users/%d/access-code", ts.req.ID)
		w := ts.do(t, http.MethodPost, path, nil, ts.req)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = ts.do(t, http.MethodPost, path, nil, ts.tech)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, dataField(t, w)["access_code"], 12)
	})

	t.Run("code sends stop at the configured cap", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/users/%d/access-code/send", ts.req.ID)
		for i := 0; i < 3; i++ {
			w := ts.do(t, http.MethodPost, path, nil, ts.tech)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
		w := ts.do(t, http.MethodPost, path, nil, ts.tech)
		assert.Equal(t, http.StatusConflict, w.Code)

		// Regenerating resets the counter and sending works again.
		w = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/access-code", ts.req.ID), nil, ts.tech)
		require.Equal(t, http.StatusOK, w.Code)
		w = ts.do(t, http.MethodPost, path, nil, ts.tech)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
