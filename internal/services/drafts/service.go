// Package drafts keeps one intake form per user in Redis and stages its
// files until the form is submitted.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sync"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/intake"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/services/auth"
	"onboard/internal/services/submission"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	DraftTTL           = 24 * time.Hour
	DefaultMaxFileSize = 10 << 20
)

// Store is the subset of the cache service drafts need.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Submitter runs the submission for a finished form.
type Submitter interface {
	Submit(ctx context.Context, sess *auth.Session, in submission.Input) (*models.Application, error)
}

// Upload is one file received for a document slot.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// NextResult carries the form after a step transition and, once submitted,
// the created application.
type NextResult struct {
	Form        *intake.Form        `json:"form"`
	Application *models.Application `json:"application,omitempty"`
}

type Service interface {
	Get(ctx context.Context, sess *auth.Session) (*intake.Form, error)
	SetFields(ctx context.Context, sess *auth.Session, fields map[string]string) (*intake.Form, error)
	Attach(ctx context.Context, sess *auth.Session, docType intake.DocumentType, up Upload) (*intake.Form, error)
	Detach(ctx context.Context, sess *auth.Session, docType intake.DocumentType) (*intake.Form, error)
	SetAgreement(ctx context.Context, sess *auth.Session, agreed bool) (*intake.Form, error)
	Next(ctx context.Context, sess *auth.Session) (*NextResult, error)
	Back(ctx context.Context, sess *auth.Session) (*intake.Form, error)
	Discard(ctx context.Context, sess *auth.Session) error
	PruneStaging(ctx context.Context) (int, error)
}

type service struct {
	store       Store
	staging     afero.Fs
	submitter   Submitter
	log         logger.Logger
	maxFileSize int64

	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func NewService(store Store, staging afero.Fs, submitter Submitter, log logger.Logger, maxFileSize int64) Service {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &service{
		store:       store,
		staging:     staging,
		submitter:   submitter,
		log:         log,
		maxFileSize: maxFileSize,
		locks:       make(map[uuid.UUID]*userLock),
	}
}

func draftKey(userID uuid.UUID) string {
	return fmt.Sprintf("draft:user:%s", userID)
}

func stagingKey(userID uuid.UUID, docType intake.DocumentType) string {
	return path.Join(userID.String(), string(docType))
}

// lock serialises read-modify-write cycles on one user's draft. The entry
// is dropped once no caller holds or waits for it.
func (s *service) lock(userID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*intake.Form, error) {
	form := intake.NewForm()
	found, err := s.store.Get(ctx, draftKey(userID), form)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Failed to load draft", err)
	}
	if !found {
		return intake.NewForm(), nil
	}
	return form, nil
}

func (s *service) save(ctx context.Context, userID uuid.UUID, form *intake.Form) error {
	if err := s.store.SetWithTTL(ctx, draftKey(userID), form, DraftTTL); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Failed to save draft", err)
	}
	return nil
}

// mutate loads the draft, applies fn and saves the result even when fn
// reports a validation error, so recorded errors survive.
func (s *service) mutate(ctx context.Context, sess *auth.Session, fn func(*intake.Form) error) (*intake.Form, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	defer s.lock(sess.UserID)()

	form, err := s.load(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	fnErr := fn(form)
	if err := s.save(ctx, sess.UserID, form); err != nil {
		return nil, err
	}
	return form, fnErr
}

func (s *service) Get(ctx context.Context, sess *auth.Session) (*intake.Form, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	return s.load(ctx, sess.UserID)
}

func (s *service) SetFields(ctx context.Context, sess *auth.Session, fields map[string]string) (*intake.Form, error) {
	return s.mutate(ctx, sess, func(f *intake.Form) error {
		for k, v := range fields {
			if err := f.SetField(k, v); err != nil {
				return apperr.Validation(map[string]string{k: "Unknown field"})
			}
		}
		return nil
	})
}

func (s *service) Attach(ctx context.Context, sess *auth.Session, docType intake.DocumentType, up Upload) (*intake.Form, error) {
	if !docType.Valid() {
		return nil, apperr.Validation(map[string]string{string(docType): "Unknown document type"})
	}
	if up.Size > s.maxFileSize {
		return nil, apperr.Validation(map[string]string{
			string(docType): "File exceeds the " + sizeLabel(s.maxFileSize) + " limit",
		})
	}

	return s.mutate(ctx, sess, func(f *intake.Form) error {
		key := stagingKey(sess.UserID, docType)
		n, err := s.stage(key, up.Body)
		if err != nil {
			s.log.WithError(err).Error("failed to stage file", map[string]interface{}{"key": key})
			return apperr.Wrap(apperr.CodeUploadFailed, "Failed to upload file", err)
		}
		return f.Attach(docType, &intake.Attachment{
			Filename:    up.Filename,
			ContentType: up.ContentType,
			Size:        n,
			Ref:         key,
		})
	})
}

func (s *service) stage(key string, body io.Reader) (int64, error) {
	if err := s.staging.MkdirAll(path.Dir(key), 0o755); err != nil {
		return 0, err
	}
	file, err := s.staging.Create(key)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(body, s.maxFileSize+1))
	if err != nil {
		return 0, err
	}
	if n > s.maxFileSize {
		_ = s.staging.Remove(key)
		return 0, fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}
	return n, nil
}

func (s *service) Detach(ctx context.Context, sess *auth.Session, docType intake.DocumentType) (*intake.Form, error) {
	if !docType.Valid() {
		return nil, apperr.Validation(map[string]string{string(docType): "Unknown document type"})
	}
	return s.mutate(ctx, sess, func(f *intake.Form) error {
		if err := s.staging.Remove(stagingKey(sess.UserID, docType)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).Warn("failed to remove staged file", nil)
		}
		return f.Detach(docType)
	})
}

func (s *service) SetAgreement(ctx context.Context, sess *auth.Session, agreed bool) (*intake.Form, error) {
	return s.mutate(ctx, sess, func(f *intake.Form) error {
		f.SetAgreement(agreed)
		return nil
	})
}

func (s *service) Back(ctx context.Context, sess *auth.Session) (*intake.Form, error) {
	return s.mutate(ctx, sess, func(f *intake.Form) error {
		f.Back()
		return nil
	})
}

// Next advances the wizard. At the final step a valid form is submitted; on
// success the draft and its staged files are discarded, on failure the
// message is kept on the form under the form key.
func (s *service) Next(ctx context.Context, sess *auth.Session) (*NextResult, error) {
	if sess == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	defer s.lock(sess.UserID)()

	form, err := s.load(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	ready, nextErr := form.Next()
	if !ready {
		if err := s.save(ctx, sess.UserID, form); err != nil {
			return nil, err
		}
		return &NextResult{Form: form}, nextErr
	}

	app, subErr := s.submit(ctx, sess, form)
	if subErr != nil {
		msg := "Failed to submit application"
		if de, ok := apperr.As(subErr); ok {
			msg = de.Message
			if reason := de.Reason(); reason != "" && de.Code != apperr.CodeInternal {
				msg += ": " + reason
			}
			for k, v := range de.Fields {
				form.Errors[k] = v
			}
		}
		form.Fail(msg)
		if err := s.save(ctx, sess.UserID, form); err != nil {
			return nil, err
		}
		return &NextResult{Form: form}, subErr
	}

	if err := s.discard(ctx, sess.UserID); err != nil {
		s.log.WithError(err).Warn("submitted draft was not discarded", map[string]interface{}{"application_id": app.ID})
	}
	return &NextResult{Form: intake.NewForm(), Application: app}, nil
}

func (s *service) submit(ctx context.Context, sess *auth.Session, form *intake.Form) (*models.Application, error) {
	in, err := form.Intake()
	if err != nil {
		return nil, err
	}

	docs := make(map[intake.DocumentType]submission.Document, len(in.Documents))
	var files []afero.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for dt, a := range in.Documents {
		f, err := s.staging.Open(a.Ref)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUploadFailed, "Failed to upload file", fmt.Errorf("%s: %w", dt, err))
		}
		files = append(files, f)
		docs[dt] = submission.Document{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			Body:        f,
		}
	}

	return s.submitter.Submit(ctx, sess, submission.Input{
		Business:  in.Business,
		Owner:     in.Owner,
		Documents: docs,
	})
}

func (s *service) Discard(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return apperr.ErrNotAuthenticated
	}
	defer s.lock(sess.UserID)()
	return s.discard(ctx, sess.UserID)
}

func (s *service) discard(ctx context.Context, userID uuid.UUID) error {
	if err := s.staging.RemoveAll(userID.String()); err != nil {
		s.log.WithError(err).Warn("failed to remove staged files", map[string]interface{}{"user_id": userID})
	}
	if err := s.store.Delete(ctx, draftKey(userID)); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Failed to discard draft", err)
	}
	return nil
}

// PruneStaging removes staged files of users whose draft has expired. It
// returns the number of user folders removed.
func (s *service) PruneStaging(ctx context.Context) (int, error) {
	entries, err := afero.ReadDir(s.staging, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read staging dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		userID, err := uuid.Parse(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		ok, err := s.pruneUser(ctx, userID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *service) pruneUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	defer s.lock(userID)()

	found, err := s.store.Get(ctx, draftKey(userID), intake.NewForm())
	if err != nil {
		return false, fmt.Errorf("check draft %s: %w", userID, err)
	}
	if found {
		return false, nil
	}
	if err := s.staging.RemoveAll(userID.String()); err != nil {
		return false, fmt.Errorf("remove staged files for %s: %w", userID, err)
	}
	return true, nil
}

func sizeLabel(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d KB", n>>10)
}
