// Package submission persists a validated intake: it uploads the documents,
// then inserts the application record, rolling uploads back on failure.
package submission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/intake"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories"
	"onboard/internal/services/auth"
	"onboard/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	Submit(ctx context.Context, sess *auth.Session, in Input) (*models.Application, error)
}

type service struct {
	store   storage.DocumentStore
	apps    repositories.ApplicationRepository
	orphans repositories.OrphanRepository
	metrics MetricsCollector
	tracer  trace.Tracer
	log     logger.Logger
	now     func() time.Time
}

type Option func(*service)

func WithMetrics(m MetricsCollector) Option {
	return func(s *service) { s.metrics = m }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer("onboard/submission") }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(
	store storage.DocumentStore,
	apps repositories.ApplicationRepository,
	orphans repositories.OrphanRepository,
	log logger.Logger,
	opts ...Option,
) Service {
	s := &service{
		store:   store,
		apps:    apps,
		orphans: orphans,
		metrics: NoopMetricsCollector{},
		tracer:  otel.Tracer("onboard/submission"),
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Submit(ctx context.Context, sess *auth.Session, in Input) (*models.Application, error) {
	if sess == nil {
		s.metrics.RecordSubmission(OutcomeRejected)
		return nil, apperr.ErrNotAuthenticated
	}
	if err := validateInput(in); err != nil {
		s.metrics.RecordSubmission(OutcomeRejected)
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "submission.Submit", trace.WithAttributes(
		attribute.String("user.id", sess.UserID.String()),
		attribute.Int("documents", len(in.Documents)),
	))
	defer span.End()

	log := s.log.WithFields(map[string]interface{}{"user_id": sess.UserID})

	urls, uploaded, err := s.uploadAll(ctx, sess, in.Documents)
	if err != nil {
		s.compensate(ctx, log, uploaded, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.metrics.RecordSubmission(OutcomeUploadFailed)

		de := apperr.Wrap(apperr.CodeUploadFailed, "Failed to upload file", err)
		var ue *uploadError
		if errors.As(err, &ue) {
			de.Details = ue.Error()
		}
		log.WithError(err).Warn("submission aborted during upload", map[string]interface{}{
			"uploaded": len(uploaded),
		})
		return nil, de
	}

	app := buildApplication(sess, in, urls)
	if err := s.apps.Create(ctx, app); err != nil {
		s.compensate(ctx, log, uploaded, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.metrics.RecordSubmission(OutcomeInsertFailed)
		log.WithError(err).Error("application insert failed", nil)
		return nil, apperr.Wrap(apperr.CodeRecordInsertFailed, "Failed to create submission", err)
	}

	span.SetAttributes(attribute.String("application.id", app.ID.String()))
	s.metrics.RecordSubmission(OutcomeSuccess)
	log.Info("application submitted", map[string]interface{}{"application_id": app.ID})
	return app, nil
}

// uploadAll uploads every document concurrently. It always returns the
// paths that did upload so the caller can roll them back.
func (s *service) uploadAll(ctx context.Context, sess *auth.Session, docs map[intake.DocumentType]Document) (map[intake.DocumentType]string, []string, error) {
	at := s.now()
	urls := make(map[intake.DocumentType]string, len(docs))
	var (
		mu       sync.Mutex
		uploaded []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, docType := range intake.AllDocuments {
		doc, ok := docs[docType]
		if !ok {
			continue
		}
		docType := docType
		path := storage.ObjectPath(sess.UserID.String(), docType.Folder(), at, doc.Filename)

		g.Go(func() error {
			uctx, span := s.tracer.Start(gctx, "submission.upload",
				trace.WithAttributes(attribute.String("document.type", string(docType))))
			defer span.End()

			start := time.Now()
			err := s.store.Upload(uctx, path, doc.ContentType, doc.Body, doc.Size)
			s.metrics.RecordUploadDuration(string(docType), time.Since(start))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "upload failed")
				return &uploadError{docType: docType, err: err}
			}

			mu.Lock()
			uploaded = append(uploaded, path)
			urls[docType] = s.store.PublicURL(path)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return urls, uploaded, err
}

// compensate deletes uploaded objects after a failed submission. Paths that
// cannot be deleted are recorded for the orphan sweeper.
func (s *service) compensate(ctx context.Context, log logger.Logger, paths []string, cause error) {
	if len(paths) == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := s.store.Delete(cctx, paths...)
	failed := storage.FailedPaths(err, paths)
	if len(failed) == 0 {
		log.Info("rolled back uploaded documents", map[string]interface{}{"count": len(paths)})
		return
	}

	orphans := make([]models.OrphanedDocument, 0, len(failed))
	for _, p := range failed {
		orphans = append(orphans, models.OrphanedDocument{
			Bucket: s.store.Bucket(),
			Path:   p,
			Reason: fmt.Sprintf("rollback after %v: %v", cause, err),
		})
	}
	if rerr := s.orphans.Record(cctx, orphans); rerr != nil {
		log.WithError(rerr).Error("failed to record orphaned documents", map[string]interface{}{
			"paths": failed,
		})
		return
	}
	log.WithError(err).Warn("rollback incomplete, orphaned documents recorded", map[string]interface{}{
		"count": len(failed),
	})
}

func validateInput(in Input) error {
	fields := make(map[string]string)
	for docType := range in.Documents {
		if !docType.Valid() {
			fields[string(docType)] = "Unknown document type"
		}
	}
	for _, docType := range intake.RequiredDocuments {
		if doc, ok := in.Documents[docType]; !ok || doc.Body == nil {
			fields[string(docType)] = "Required"
		}
	}
	if doc, ok := in.Documents[intake.DocAdditional]; ok && doc.Body == nil {
		fields[string(intake.DocAdditional)] = "Required"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

func buildApplication(sess *auth.Session, in Input, urls map[intake.DocumentType]string) *models.Application {
	url := func(dt intake.DocumentType) *string {
		if u, ok := urls[dt]; ok {
			return &u
		}
		return nil
	}

	return &models.Application{
		UserID:             sess.UserID,
		DBAName:            in.Business.DBAName,
		BusinessPhone:      in.Business.Phone,
		BusinessWebsite:    in.Business.Website,
		BusinessAddress:    in.Business.Address,
		ShippingAddress:    in.Business.ShippingAddress,
		TaxID:              in.Business.TaxID,
		OwnerFirstName:     in.Owner.FirstName,
		OwnerLastName:      in.Owner.LastName,
		PersonalPhone:      in.Owner.Phone,
		Email:              in.Owner.Email,
		SSN:                in.Owner.SSN,
		DriversLicenseURL:  url(intake.DocDriversLicense),
		BusinessLicenseURL: url(intake.DocBusinessLicense),
		VoidCheckURL:       url(intake.DocVoidCheck),
		AdditionalDocURL:   url(intake.DocAdditional),
		Status:             models.StatusPending,
	}
}
