// Package review owns the application status lifecycle. Any status may move
// to any other status, including itself.
package review

import (
	"context"
	"errors"
	"strings"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 100000
)

// SetStatusInput describes one admin transition.
type SetStatusInput struct {
	Status  models.ApplicationStatus
	Note    string
	Notify  bool
	ActorID uuid.UUID
}

// ListInput selects one page of the admin listing.
type ListInput struct {
	Status models.ApplicationStatus
	Page   int
	Limit  int
}

// Page is one page of applications.
type Page struct {
	Items []models.Application
	Page  int
	Limit int
	Total int64
}

// MetricsCollector receives transition counts.
type MetricsCollector interface {
	RecordTransition(from, to string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTransition(string, string) {}

type Service interface {
	SetStatus(ctx context.Context, id uuid.UUID, in SetStatusInput) (*models.Application, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Application, error)
	List(ctx context.Context, in ListInput) (*Page, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
	Messages(ctx context.Context, id uuid.UUID) ([]models.Message, error)
}

type service struct {
	apps     repositories.ApplicationRepository
	messages repositories.MessageRepository
	metrics  MetricsCollector
	tracer   trace.Tracer
	log      logger.Logger
	now      func() time.Time
}

type Option func(*service)

func WithMetrics(m MetricsCollector) Option {
	return func(s *service) { s.metrics = m }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer("onboard/review") }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(
	apps repositories.ApplicationRepository,
	messages repositories.MessageRepository,
	log logger.Logger,
	opts ...Option,
) Service {
	s := &service{
		apps:     apps,
		messages: messages,
		metrics:  NoopMetricsCollector{},
		tracer:   otel.Tracer("onboard/review"),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetStatus moves an application to in.Status and returns the stored copy.
func (s *service) SetStatus(ctx context.Context, id uuid.UUID, in SetStatusInput) (*models.Application, error) {
	if !in.Status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}

	ctx, span := s.tracer.Start(ctx, "review.SetStatus", trace.WithAttributes(
		attribute.String("application.id", id.String()),
		attribute.String("status", string(in.Status)),
	))
	defer span.End()

	log := s.log.WithFields(map[string]interface{}{
		"application_id": id,
		"status":         in.Status,
		"actor_id":       in.ActorID,
	})

	current, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}

	var notes *string
	if note := strings.TrimSpace(in.Note); note != "" {
		notes = &note
	}

	if err := s.apps.UpdateStatus(ctx, id, in.Status, notes, s.now()); err != nil {
		log.WithError(err).Error("status update failed", nil)
		return nil, s.fail(span, err)
	}
	s.metrics.RecordTransition(string(current.Status), string(in.Status))

	updated, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}

	if in.Notify {
		msg := &models.Message{
			UserID:       updated.UserID,
			SubmissionID: updated.ID,
			Message:      MessageFor(in.Status, in.Note),
			Status:       in.Status,
		}
		if err := s.messages.Create(ctx, msg); err != nil {
			span.AddEvent("message write failed")
			log.WithError(err).Warn("status changed but message was not written", nil)
		}
	}

	log.Info("application status changed", map[string]interface{}{"from": current.Status})
	return updated, nil
}

func (s *service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	if errors.Is(err, repositories.ErrApplicationNotFound) {
		span.SetStatus(codes.Error, "not found")
		return apperr.ErrApplicationNotFound
	}
	span.SetStatus(codes.Error, "update failed")
	return apperr.Wrap(apperr.CodeUpdateFailed, "Failed to update submission", err)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return nil, apperr.ErrApplicationNotFound
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch submission", err)
	}
	return app, nil
}

// List returns applications newest first. Page is 1-based.
func (s *service) List(ctx context.Context, in ListInput) (*Page, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Page > MaxPage {
		in.Page = MaxPage
	}
	if in.Limit < 1 {
		in.Limit = DefaultPageSize
	}
	if in.Limit > MaxPageSize {
		in.Limit = MaxPageSize
	}

	items, total, err := s.apps.List(ctx, repositories.ApplicationFilter{
		Status: in.Status,
		Offset: (in.Page - 1) * in.Limit,
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch submissions", err)
	}
	return &Page{Items: items, Page: in.Page, Limit: in.Limit, Total: total}, nil
}

// CountByStatus always reports all three statuses.
func (s *service) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	rows, err := s.apps.CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to count submissions", err)
	}
	counts := map[models.ApplicationStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *service) Messages(ctx context.Context, id uuid.UUID) ([]models.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListBySubmission(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to fetch messages", err)
	}
	return msgs, nil
}
