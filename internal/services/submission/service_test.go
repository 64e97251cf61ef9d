package submission

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/intake"
	"onboard/internal/logger"
	"onboard/internal/models"
	"onboard/internal/repositories/mocks"
	"onboard/internal/services/auth"
	"onboard/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// faultyStore wraps a LocalStore and fails uploads into chosen folders.
type faultyStore struct {
	*storage.LocalStore
	failFolder string
	failDelete bool
	uploads    int32
}

func (f *faultyStore) Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error {
	if f.failFolder != "" && strings.Contains(path, "/"+f.failFolder+"/") {
		return errors.New("storage unavailable")
	}
	return f.LocalStore.Upload(ctx, path, contentType, body, size)
}

func (f *faultyStore) Delete(ctx context.Context, paths ...string) error {
	if f.failDelete {
		failed := make(map[string]error, len(paths))
		for _, p := range paths {
			failed[p] = errors.New("access denied")
		}
		return &storage.DeleteError{Failed: failed}
	}
	return f.LocalStore.Delete(ctx, paths...)
}

type fixture struct {
	fs      afero.Fs
	store   *faultyStore
	apps    *mocks.ApplicationRepository
	orphans *mocks.OrphanRepository
	svc     Service
	sess    *auth.Session
}

var submittedAt = time.UnixMilli(1700000000000)

func newFixture() *fixture {
	fs := afero.NewMemMapFs()
	store := &faultyStore{LocalStore: storage.NewLocalStoreFs(fs, "submissions", "https://files.example.com")}
	f := &fixture{
		fs:      fs,
		store:   store,
		apps:    new(mocks.ApplicationRepository),
		orphans: new(mocks.OrphanRepository),
		sess:    &auth.Session{UserID: uuid.MustParse("7d7e4c4e-1f7a-4a8e-9a51-2f1f0c7b9a10"), Email: "jane@acme.com"},
	}
	f.svc = NewService(store, f.apps, f.orphans, logger.NewNoOpLogger(), WithClock(func() time.Time { return submittedAt }))
	return f
}

func doc(name, body string) Document {
	return Document{Filename: name, ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func acmeInput(withAdditional bool) Input {
	in := Input{
		Business: intake.Business{DBAName: "Acme LLC", Phone: "555-0100", Address: "1 Main St", TaxID: "12-3456789"},
		Owner:    intake.Owner{FirstName: "Jane", LastName: "Doe", Email: "jane@acme.com", SSN: "123-45-6789"},
		Documents: map[intake.DocumentType]Document{
			intake.DocDriversLicense:  doc("license.pdf", "dl"),
			intake.DocBusinessLicense: doc("business license.pdf", "bl"),
			intake.DocVoidCheck:       doc("check.pdf", "vc"),
		},
	}
	if withAdditional {
		in.Documents[intake.DocAdditional] = doc("extra.pdf", "ex")
	}
	return in
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	var out []string
	err := afero.Walk(f.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			out = append(out, path)
		}
		return err
	})
	require.NoError(t, err)
	return out
}

func TestSubmit_Success(t *testing.T) {
	tests := []struct {
		name           string
		withAdditional bool
	}{
		{"required documents only", false},
		{"with additional document", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.apps.On("Create", mock.Anything, mock.AnythingOfType("*models.Application")).Return(nil).Once()

			app, err := f.svc.Submit(context.Background(), f.sess, acmeInput(tt.withAdditional))

			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, app.Status)
			assert.Equal(t, f.sess.UserID, app.UserID)
			assert.Equal(t, "Acme LLC", app.DBAName)
			require.NotNil(t, app.DriversLicenseURL)
			assert.Equal(t,
				"https://files.example.com/submissions/7d7e4c4e-1f7a-4a8e-9a51-2f1f0c7b9a10/drivers_license/1700000000000_license.pdf",
				*app.DriversLicenseURL)
			require.NotNil(t, app.BusinessLicenseURL)
			assert.Contains(t, *app.BusinessLicenseURL, "/business_license/1700000000000_business_license.pdf")
			require.NotNil(t, app.VoidCheckURL)
			if tt.withAdditional {
				require.NotNil(t, app.AdditionalDocURL)
				assert.Len(t, f.files(t), 4)
			} else {
				assert.Nil(t, app.AdditionalDocURL)
				assert.Len(t, f.files(t), 3)
			}
			f.apps.AssertNumberOfCalls(t, "Create", 1)
		})
	}
}

func TestSubmit_RequiresSession(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Submit(context.Background(), nil, acmeInput(false))

	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	assert.Empty(t, f.files(t))
	f.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmit_MissingRequiredDocument(t *testing.T) {
	f := newFixture()
	in := acmeInput(false)
	delete(in.Documents, intake.DocVoidCheck)

	_, err := f.svc.Submit(context.Background(), f.sess, in)

	de, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationFailed, de.Code)
	assert.Equal(t, "Required", de.Fields["void_check"])
	assert.Empty(t, f.files(t))
}

func TestSubmit_UploadFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.store.failFolder = "business_license"

	_, err := f.svc.Submit(context.Background(), f.sess, acmeInput(true))

	de, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUploadFailed, de.Code)
	assert.Equal(t, "business_license: storage unavailable", de.Details)
	assert.Empty(t, f.files(t), "successful uploads are deleted")
	f.apps.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.orphans.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestSubmit_InsertFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.apps.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	_, err := f.svc.Submit(context.Background(), f.sess, acmeInput(false))

	assert.Equal(t, apperr.CodeRecordInsertFailed, apperr.CodeOf(err))
	assert.Empty(t, f.files(t))
}

func TestSubmit_FailedRollbackRecordsOrphans(t *testing.T) {
	f := newFixture()
	f.store.failDelete = true
	f.apps.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
	f.orphans.On("Record", mock.Anything, mock.MatchedBy(func(docs []models.OrphanedDocument) bool {
		if len(docs) != 3 {
			return false
		}
		for _, d := range docs {
			if d.Bucket != "submissions" || !strings.HasPrefix(d.Path, f.sess.UserID.String()+"/") {
				return false
			}
		}
		return true
	})).Return(nil).Once()

	_, err := f.svc.Submit(context.Background(), f.sess, acmeInput(false))

	assert.Equal(t, apperr.CodeRecordInsertFailed, apperr.CodeOf(err))
	f.orphans.AssertExpectations(t)
}

func TestSubmit_CancelledRequestStillRollsBack(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.apps.On("Create", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return(context.Canceled).Once()

	_, err := f.svc.Submit(ctx, f.sess, acmeInput(false))

	assert.Equal(t, apperr.CodeRecordInsertFailed, apperr.CodeOf(err))
	assert.Empty(t, f.files(t))
}

func spanAttr(s sdktrace.ReadOnlySpan, key string) string {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestSubmit_Spans(t *testing.T) {
	tests := []struct {
		name       string
		failFolder string
		wantStatus codes.Code
		wantDesc   string
	}{
		{"success", "", codes.Unset, ""},
		{"upload failure", "business_license", codes.Error, "upload failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.failFolder = tt.failFolder
			sr := tracetest.NewSpanRecorder()
			f.svc = NewService(f.store, f.apps, f.orphans, logger.NewNoOpLogger(),
				WithClock(func() time.Time { return submittedAt }),
				WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))),
			)
			f.apps.On("Create", mock.Anything, mock.Anything).Return(nil).Maybe()

			app, _ := f.svc.Submit(context.Background(), f.sess, acmeInput(false))

			var root sdktrace.ReadOnlySpan
			uploads := map[string]sdktrace.ReadOnlySpan{}
			for _, s := range sr.Ended() {
				switch s.Name() {
				case "submission.Submit":
					root = s
				case "submission.upload":
					uploads[spanAttr(s, "document.type")] = s
					assert.Nil(t, root, "uploads end before the submit span")
				}
			}
			require.NotNil(t, root)
			assert.Equal(t, tt.wantStatus, root.Status().Code)
			assert.Equal(t, tt.wantDesc, root.Status().Description)
			assert.Equal(t, "3", spanAttr(root, "documents"))

			for _, u := range uploads {
				assert.Equal(t, root.SpanContext().SpanID(), u.Parent().SpanID())
			}
			if tt.failFolder == "" {
				require.NotNil(t, app)
				assert.Len(t, uploads, 3)
				assert.Equal(t, app.ID.String(), spanAttr(root, "application.id"))
				return
			}
			failed, ok := uploads[tt.failFolder]
			require.True(t, ok)
			assert.Equal(t, codes.Error, failed.Status().Code)
			assert.Empty(t, spanAttr(root, "application.id"))
		})
	}
}
