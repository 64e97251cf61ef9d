package routes

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"onboard/internal/models"
	"onboard/internal/repositories"

	"github.com/google/uuid"
)

// memStore backs every repository interface with maps so the routes can be
// exercised end to end without Postgres.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	apps     map[uuid.UUID]*models.Application
	messages []models.Message
	admins   map[uuid.UUID]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[uuid.UUID]*models.User{},
		apps:   map[uuid.UUID]*models.Application{},
		admins: map[uuid.UUID]bool{},
	}
}

type memUsers struct{ *memStore }

func (m memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repositories.ErrEmailTaken
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.TokenVersion == 0 {
		u.TokenVersion = 1
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (m memUsers) IncrementTokenVersion(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.TokenVersion++
	return nil
}

func (m memUsers) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type memApps struct{ *memStore }

func (m memApps) Create(_ context.Context, app *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	now := time.Now()
	app.CreatedAt, app.UpdatedAt = now, now
	cp := *app
	m.apps[app.ID] = &cp
	return nil
}

func (m memApps) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repositories.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (m memApps) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Application, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, repositories.ErrApplicationNotFound
	}
	return a, nil
}

func (m memApps) sorted(keep func(*models.Application) bool) []models.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Application
	for _, a := range m.apps {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m memApps) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Application, error) {
	return m.sorted(func(a *models.Application) bool { return a.UserID == userID }), nil
}

func (m memApps) List(_ context.Context, f repositories.ApplicationFilter) ([]models.Application, int64, error) {
	all := m.sorted(func(a *models.Application) bool { return f.Status == "" || a.Status == f.Status })
	total := int64(len(all))
	if f.Offset >= len(all) {
		return []models.Application{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], total, nil
}

func (m memApps) UpdateStatus(_ context.Context, id uuid.UUID, status models.ApplicationStatus, notes *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return repositories.ErrApplicationNotFound
	}
	a.Status, a.UpdatedAt = status, at
	if notes != nil {
		n := *notes
		a.AdminNotes = &n
	}
	return nil
}

func (m memApps) CountByStatus(_ context.Context) ([]models.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.ApplicationStatus]int64{}
	for _, a := range m.apps {
		counts[a.Status]++
	}
	var out []models.StatusCount
	for s, n := range counts {
		out = append(out, models.StatusCount{Status: s, Count: n})
	}
	return out, nil
}

type memMessages struct{ *memStore }

func (m memMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m memMessages) ListBySubmission(_ context.Context, id uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.SubmissionID == id {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m memMessages) ListByUser(_ context.Context, id uuid.UUID) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].UserID == id {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

type memAdmins struct{ *memStore }

func (m memAdmins) IsAdmin(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[id], nil
}

func (m memAdmins) Grant(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[id] = true
	return nil
}

type memOrphans struct{}

func (memOrphans) Record(context.Context, []models.OrphanedDocument) error { return nil }
func (memOrphans) ListUnresolved(context.Context, string, int) ([]models.OrphanedDocument, error) {
	return nil, nil
}
func (memOrphans) MarkResolved(context.Context, []uuid.UUID, time.Time) error { return nil }
func (memOrphans) IncrementAttempts(context.Context, []uuid.UUID) error       { return nil }
