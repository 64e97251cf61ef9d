package repositories

import (
	"context"
	"errors"
	"time"

	"onboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationFilter narrows the admin listing.
type ApplicationFilter struct {
	Status models.ApplicationStatus
	Offset int
	Limit  int
}

// ApplicationRepository defines the interface for application persistence
type ApplicationRepository interface {
	// Create inserts a new application, assigning an ID if unset
	Create(ctx context.Context, app *models.Application) error

	// GetByID retrieves an application by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)

	// GetForUser retrieves an application only if userID owns it
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Application, error)

	// ListByUser returns the user's applications, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error)

	// List returns one page of all applications, newest first, plus the total
	List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)

	// UpdateStatus sets status and updated_at, and admin_notes when notes is non-nil
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ApplicationStatus, notes *string, at time.Time) error

	// CountByStatus aggregates applications per status
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Application{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apps []models.Application
	err := scoped().
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (r *applicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ApplicationStatus, notes *string, at time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	if notes != nil {
		updates["admin_notes"] = *notes
	}

	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var counts []models.StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}
