package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/helpdesk-io/helpdesk-ce/internal/identity"
	"github.com/helpdesk-io/helpdesk-ce/internal/lifecycle"
	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// MemoryStore implements the repository surface with in-memory maps. It is
// for development and tests; production uses the SQL repositories. It mirrors
// the SQL semantics that matter: unique ticket numbers and access codes,
// atomic transitions, cascade on user deletion with history actors nulled.
type MemoryStore struct {
	mu sync.Mutex

	users         map[int64]*models.User
	tickets       map[int64]*models.Ticket
	history       []models.TicketHistory
	notifications map[int64]*models.Notification
	attachments   map[int64]*models.TicketAttachment

	usersByEmail map[string]int64
	codes        map[string]int64
	numbers      map[string]int64

	nextUserID         int64
	nextTicketID       int64
	nextHistoryID      int64
	nextNotificationID int64
	nextAttachmentID   int64

	generator identity.Generator
	counters  *identity.MemoryCounterStore
	clock     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]*models.User),
		tickets:       make(map[int64]*models.Ticket),
		notifications: make(map[int64]*models.Notification),
		attachments:   make(map[int64]*models.TicketAttachment),
		usersByEmail:  make(map[string]int64),
		codes:         make(map[string]int64),
		numbers:       make(map[string]int64),
		generator:     identity.NewYearSequence(identity.DefaultPrefix),
		counters:      identity.NewMemoryCounterStore(),
		clock:         time.Now,
	}
}

// SetClock overrides the store's time source for tests.
func (m *MemoryStore) SetClock(clock func() time.Time) { m.clock = clock }

// Counters exposes the backing counter store so tests can seed sequences.
func (m *MemoryStore) Counters() *identity.MemoryCounterStore { return m.counters }

// CreateUser registers a user with a fresh access code.
func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.usersByEmail[user.Email]; taken {
		return fmt.Errorf("user %s: %w", user.Email, ErrDuplicateEmail)
	}

	for try := 1; ; try++ {
		code, err := identity.GenerateAccessCode()
		if err != nil {
			return err
		}
		if _, taken := m.codes[code]; taken {
			if try < codeRetries {
				continue
			}
			return fmt.Errorf("access code conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		user.AccessCode = code
		break
	}

	if user.Role == "" {
		user.Role = models.RoleRequester
	}
	now := m.clock().UTC()
	m.nextUserID++
	user.ID = m.nextUserID
	user.CodeSentCount = 0
	user.IsCodeActive = true
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	m.users[user.ID] = &stored
	m.usersByEmail[user.Email] = user.ID
	m.codes[user.AccessCode] = user.ID
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m.users[id]
	return &copied, nil
}

// RegenerateAccessCode issues a fresh code, resets the sent counter and
// reactivates the code.
func (m *MemoryStore) RegenerateAccessCode(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	var code string
	for try := 1; ; try++ {
		candidate, err := identity.GenerateAccessCode()
		if err != nil {
			return "", err
		}
		if owner, taken := m.codes[candidate]; taken && owner != userID {
			if try < codeRetries {
				continue
			}
			return "", fmt.Errorf("access code conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		code = candidate
		break
	}
	delete(m.codes, u.AccessCode)
	u.AccessCode = code
	u.CodeSentCount = 0
	u.IsCodeActive = true
	u.UpdatedAt = m.clock().UTC()
	m.codes[code] = userID
	return code, nil
}

// MarkCodeSent bumps the user's code_sent_count.
func (m *MemoryStore) MarkCodeSent(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.CodeSentCount++
	u.UpdatedAt = m.clock().UTC()
	return nil
}

// DeleteUser removes the user and cascades owned tickets, their attachments
// and their notifications. History rows survive with the actor nulled.
func (m *MemoryStore) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}

	for id, t := range m.tickets {
		if t.UserID != userID {
			continue
		}
		delete(m.numbers, t.TN)
		delete(m.tickets, id)
		for aid, a := range m.attachments {
			if a.TicketID == id {
				delete(m.attachments, aid)
			}
		}
		for nid, n := range m.notifications {
			if n.TicketID != nil && *n.TicketID == id {
				delete(m.notifications, nid)
			}
		}
		kept := m.history[:0]
		for _, h := range m.history {
			if h.TicketID != id {
				kept = append(kept, h)
			}
		}
		m.history = kept
	}

	for nid, n := range m.notifications {
		if n.UserID == userID {
			delete(m.notifications, nid)
		}
	}
	for i := range m.history {
		if m.history[i].UserID != nil && *m.history[i].UserID == userID {
			m.history[i].UserID = nil
		}
	}

	delete(m.codes, u.AccessCode)
	delete(m.usersByEmail, u.Email)
	delete(m.users, userID)
	return nil
}

// CreateTicket assigns a number from the counter store and records the
// CREATED history row, atomically under the store lock.
func (m *MemoryStore) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	for try := 1; ; try++ {
		tn, err := m.generator.Next(ctx, m.counters, now)
		if err != nil {
			return err
		}
		if _, taken := m.numbers[tn]; taken {
			if try < createRetries {
				continue
			}
			return fmt.Errorf("ticket number conflict after %d attempts: %w", try, ErrCreationFailed)
		}
		ticket.TN = tn
		break
	}

	if ticket.Status == "" {
		ticket.Status = models.StatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = models.PriorityMedium
	}
	m.nextTicketID++
	ticket.ID = m.nextTicketID
	ticket.CreatedAt = now.UTC()
	ticket.UpdatedAt = now.UTC()

	stored := *ticket
	m.tickets[ticket.ID] = &stored
	m.numbers[ticket.TN] = ticket.ID

	ownerID := ticket.UserID
	m.appendHistoryLocked(models.TicketHistoryInsert{
		TicketID:  ticket.ID,
		UserID:    &ownerID,
		Action:    models.ActionCreated,
		Comment:   ticket.ShortDescription(),
		CreatedAt: ticket.CreatedAt,
	})
	return nil
}

// GetTicket implements lifecycle.Store.
func (m *MemoryStore) GetTicket(_ context.Context, id int64) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// ApplyTransition implements lifecycle.Store. The store lock makes the field
// update, the history row and the notification one atomic unit.
func (m *MemoryStore) ApplyTransition(_ context.Context, ticketID int64, change lifecycle.Change) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tickets[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	if t.Status != change.FromStatus {
		return nil, fmt.Errorf("ticket %d is now %s: %w", ticketID, t.Status, lifecycle.ErrConcurrentUpdate)
	}

	t.Status = change.Status
	t.VisitDate = change.VisitDate
	t.VisitTime = change.VisitTime
	t.RejectionReason = change.RejectionReason
	t.ClosureNote = change.ClosureNote
	t.ClosedAt = change.ClosedAt
	t.UpdatedAt = change.UpdatedAt

	m.appendHistoryLocked(change.History)

	if change.Notification != nil {
		m.nextNotificationID++
		m.notifications[m.nextNotificationID] = &models.Notification{
			ID:        m.nextNotificationID,
			UserID:    change.Notification.UserID,
			TicketID:  change.Notification.TicketID,
			Title:     change.Notification.Title,
			Message:   change.Notification.Message,
			IsRead:    false,
			CreatedAt: change.History.CreatedAt,
		}
	}

	copied := *t
	return &copied, nil
}

func (m *MemoryStore) appendHistoryLocked(entry models.TicketHistoryInsert) {
	m.nextHistoryID++
	var comment *string
	if entry.Comment != "" {
		c := entry.Comment
		comment = &c
	}
	m.history = append(m.history, models.TicketHistory{
		ID:        m.nextHistoryID,
		TicketID:  entry.TicketID,
		UserID:    entry.UserID,
		Action:    entry.Action,
		Comment:   comment,
		CreatedAt: entry.CreatedAt,
	})
}

// List returns tickets matching the filter, newest first.
func (m *MemoryStore) List(_ context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Ticket
	for _, t := range m.tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.OwnerID != 0 && t.UserID != filter.OwnerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		start := filter.Offset
		if start > len(out) {
			start = len(out)
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

// ListClosedBefore returns CLOSED tickets with closed_at at or before cutoff.
func (m *MemoryStore) ListClosedBefore(_ context.Context, cutoff time.Time) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Ticket
	for _, t := range m.tickets {
		if t.Status == models.StatusClosed && t.ClosedAt != nil && !t.ClosedAt.After(cutoff) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(*out[j].ClosedAt) })
	return out, nil
}

// ListHistory returns a ticket's audit trail, newest first.
func (m *MemoryStore) ListHistory(_ context.Context, ticketID int64) ([]models.TicketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.TicketHistory
	for _, h := range m.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InsertNotification creates an unread notification.
func (m *MemoryStore) InsertNotification(_ context.Context, n models.NotificationInsert) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNotificationID++
	stored := &models.Notification{
		ID:        m.nextNotificationID,
		UserID:    n.UserID,
		TicketID:  n.TicketID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    false,
		CreatedAt: m.clock().UTC(),
	}
	m.notifications[stored.ID] = stored
	copied := *stored
	return &copied, nil
}

func (m *MemoryStore) GetNotification(_ context.Context, id int64) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (m *MemoryStore) ListUnreadNotifications(_ context.Context, userID int64) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
