package repositories

import (
	"context"

	"onboard/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository stores status messages. Messages are append-only.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.Message, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&msgs).Error
	return msgs, err
}
