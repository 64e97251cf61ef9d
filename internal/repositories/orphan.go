package repositories

import (
	"context"
	"time"

	"onboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrphanRepository tracks uploaded objects that could not be rolled back.
type OrphanRepository interface {
	Record(ctx context.Context, docs []models.OrphanedDocument) error
	// ListUnresolved returns the bucket's unresolved rows, fewest attempts
	// first, so rows that keep failing cannot crowd out newer ones.
	ListUnresolved(ctx context.Context, bucket string, limit int) ([]models.OrphanedDocument, error)
	MarkResolved(ctx context.Context, ids []uuid.UUID, at time.Time) error
	IncrementAttempts(ctx context.Context, ids []uuid.UUID) error
}

type orphanRepository struct {
	db *gorm.DB
}

func NewOrphanRepository(db *gorm.DB) OrphanRepository {
	return &orphanRepository{db: db}
}

func (r *orphanRepository) Record(ctx context.Context, docs []models.OrphanedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		if docs[i].ID == uuid.Nil {
			docs[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

func (r *orphanRepository) ListUnresolved(ctx context.Context, bucket string, limit int) ([]models.OrphanedDocument, error) {
	var docs []models.OrphanedDocument
	err := r.db.WithContext(ctx).
		Where("bucket = ? AND resolved_at IS NULL", bucket).
		Order("attempts ASC, created_at ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}

func (r *orphanRepository) MarkResolved(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrphanedDocument{}).
		Where("id IN ?", ids).
		UpdateColumn("resolved_at", at).Error
}

func (r *orphanRepository) IncrementAttempts(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OrphanedDocument{}).
		Where("id IN ?", ids).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}
