// Package dashboard serves a user's own applications and status messages.
package dashboard

import (
	"context"
	"errors"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories"
	"onboard/internal/services/auth"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultWatchTimeout = 30 * time.Second
)

// WatchResult is the answer to a long-poll. Cursor is the value to pass as
// since on the next call.
type WatchResult struct {
	Applications []models.Application `json:"applications"`
	Changed      bool                 `json:"changed"`
	Cursor       time.Time            `json:"cursor"`
}

type Service interface {
	ListMine(ctx context.Context, sess *auth.Session) ([]models.Application, error)
	Watch(ctx context.Context, sess *auth.Session, since time.Time) (*WatchResult, error)
	GetOwn(ctx context.Context, sess *auth.Session, id uuid.UUID) (*models.Application, error)
	MyMessages(ctx context.Context, sess *auth.Session) ([]models.Message, error)
}

type service struct {
	apps         repositories.ApplicationRepository
	messages     repositories.MessageRepository
	log          logger.Logger
	pollInterval time.Duration
	watchTimeout time.Duration
}

func NewService(
	apps repositories.ApplicationRepository,
	messages repositories.MessageRepository,
	log logger.Logger,
	pollInterval, watchTimeout time.Duration,
) Service {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if watchTimeout <= 0 {
		watchTimeout = DefaultWatchTimeout
	}
	return &service{
		apps:         apps,
		messages:     messages,
		log:          log,
		pollInterval: pollInterval,
		watchTimeout: watchTimeout,
	}
}

func (s *service) ListMine(ctx context.Context, sess *auth.Session) ([]models.Application, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	apps, err := s.apps.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch submissions", err)
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// Watch re-reads the user's applications every poll interval until one has
// changed after since, the watch timeout elapses or ctx is done. A zero since
// returns the current list immediately.
func (s *service) Watch(ctx context.Context, sess *auth.Session, since time.Time) (*WatchResult, error) {
	apps, err := s.ListMine(ctx, sess)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return result(apps, since, true), nil
	}
	if changedSince(apps, since) {
		return result(apps, since, true), nil
	}

	deadline := time.NewTimer(s.watchTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return result(apps, since, false), nil
		case <-deadline.C:
			return result(apps, since, false), nil
		case <-ticker.C:
			apps, err = s.ListMine(ctx, sess)
			if err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return result(nil, since, false), nil
				}
				return nil, err
			}
			if changedSince(apps, since) {
				return result(apps, since, true), nil
			}
		}
	}
}

func changedSince(apps []models.Application, since time.Time) bool {
	for _, a := range apps {
		if a.UpdatedAt.After(since) {
			return true
		}
	}
	return false
}

func result(apps []models.Application, since time.Time, changed bool) *WatchResult {
	cursor := since
	for _, a := range apps {
		if a.UpdatedAt.After(cursor) {
			cursor = a.UpdatedAt
		}
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return &WatchResult{Applications: apps, Changed: changed, Cursor: cursor}
}

// GetOwn returns NOT_FOUND for applications owned by someone else.
func (s *service) GetOwn(ctx context.Context, sess *auth.Session, id uuid.UUID) (*models.Application, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	app, err := s.apps.GetForUser(ctx, id, sess.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return nil, apperr.ErrApplicationNotFound
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch submission", err)
	}
	return app, nil
}

func (s *service) MyMessages(ctx context.Context, sess *auth.Session) ([]models.Message, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	msgs, err := s.messages.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}
