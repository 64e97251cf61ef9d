// Package mocks holds testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"onboard/internal/models"
	"onboard/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type ApplicationRepository struct {
	mock.Mock
}

var _ repositories.ApplicationRepository = (*ApplicationRepository)(nil)

// Create assigns an ID on success, like the gorm repository.
func (m *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	args := m.Called(ctx, app)
	if args.Error(0) == nil && app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	args := m.Called(ctx, id)
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

func (m *ApplicationRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Application, error) {
	args := m.Called(ctx, id, userID)
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

func (m *ApplicationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	args := m.Called(ctx, userID)
	apps, _ := args.Get(0).([]models.Application)
	return apps, args.Error(1)
}

func (m *ApplicationRepository) List(ctx context.Context, f repositories.ApplicationFilter) ([]models.Application, int64, error) {
	args := m.Called(ctx, f)
	apps, _ := args.Get(0).([]models.Application)
	total, _ := args.Get(1).(int64)
	return apps, total, args.Error(2)
}

func (m *ApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ApplicationStatus, notes *string, at time.Time) error {
	return m.Called(ctx, id, status, notes, at).Error(0)
}

func (m *ApplicationRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).([]models.StatusCount)
	return counts, args.Error(1)
}

type MessageRepository struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func (m *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MessageRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.Message, error) {
	args := m.Called(ctx, submissionID)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

func (m *MessageRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	msgs, _ := args.Get(0).([]models.Message)
	return msgs, args.Error(1)
}

type OrphanRepository struct {
	mock.Mock
}

var _ repositories.OrphanRepository = (*OrphanRepository)(nil)

func (m *OrphanRepository) Record(ctx context.Context, docs []models.OrphanedDocument) error {
	return m.Called(ctx, docs).Error(0)
}

func (m *OrphanRepository) ListUnresolved(ctx context.Context, bucket string, limit int) ([]models.OrphanedDocument, error) {
	args := m.Called(ctx, bucket, limit)
	docs, _ := args.Get(0).([]models.OrphanedDocument)
	return docs, args.Error(1)
}

func (m *OrphanRepository) MarkResolved(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

func (m *OrphanRepository) IncrementAttempts(ctx context.Context, ids []uuid.UUID) error {
	return m.Called(ctx, ids).Error(0)
}

type AdminRepository struct {
	mock.Mock
}

var _ repositories.AdminRepository = (*AdminRepository)(nil)

func (m *AdminRepository) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *AdminRepository) Grant(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}
