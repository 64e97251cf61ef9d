package review

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/logger/logtest"
	"onboard/internal/models"
	"onboard/internal/repositories"
	"onboard/internal/repositories/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordingMetrics struct {
	transitions [][2]string
}

func (r *recordingMetrics) RecordTransition(from, to string) {
	r.transitions = append(r.transitions, [2]string{from, to})
}

var reviewedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*mocks.ApplicationRepository, *mocks.MessageRepository, *recordingMetrics, Service) {
	apps := new(mocks.ApplicationRepository)
	msgs := new(mocks.MessageRepository)
	metrics := &recordingMetrics{}
	svc := NewService(apps, msgs, logtest.New(t),
		WithMetrics(metrics),
		WithClock(func() time.Time { return reviewedAt }),
	)
	t.Cleanup(func() {
		apps.AssertExpectations(t)
		msgs.AssertExpectations(t)
	})
	return apps, msgs, metrics, svc
}

func application(id uuid.UUID, status models.ApplicationStatus) *models.Application {
	return &models.Application{
		ID:      id,
		UserID:  uuid.MustParse("0b1e0cde-5c55-4f37-8d0b-0c4f3f0e9a01"),
		DBAName: "Acme Coffee",
		Status:  status,
	}
}

func strPtr(s string) *string { return &s }

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationStatus(s), got)
	}

	for _, s := range []string{"", "archived", "APPROVED"} {
		_, err := ParseStatus(s)
		assert.Equal(t, apperr.CodeInvalidStatus, apperr.CodeOf(err), s)
	}
}

func TestMessageFor(t *testing.T) {
	assert.Equal(t,
		"Your application has been received and is under review.",
		MessageFor(models.StatusPending, ""))
	assert.Equal(t,
		"Congratulations! Your application has been approved. You can now proceed.",
		MessageFor(models.StatusApproved, "   "))
	assert.Equal(t,
		"Your application requires additional information. Please see admin notes.\n\nAdmin Notes: Void check is unreadable",
		MessageFor(models.StatusRejected, "Void check is unreadable"))
}

func TestSetStatus_ApproveWithNoteNotifies(t *testing.T) {
	apps, msgs, metrics, svc := setup(t)
	id := uuid.New()
	before := application(id, models.StatusPending)
	after := application(id, models.StatusApproved)
	after.AdminNotes = strPtr("Looks good")

	apps.On("GetByID", mock.Anything, id).Return(before, nil).Once()
	apps.On("UpdateStatus", mock.Anything, id, models.StatusApproved, strPtr("Looks good"), reviewedAt).Return(nil).Once()
	apps.On("GetByID", mock.Anything, id).Return(after, nil).Once()
	msgs.On("Create", mock.Anything, mock.MatchedBy(func(m *models.Message) bool {
		return m.SubmissionID == id &&
			m.UserID == before.UserID &&
			m.Status == models.StatusApproved &&
			m.Message == MessageFor(models.StatusApproved, "Looks good")
	})).Return(nil).Once()

	got, err := svc.SetStatus(context.Background(), id, SetStatusInput{
		Status: models.StatusApproved,
		Note:   "Looks good",
		Notify: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, "Looks good", *got.AdminNotes)
	assert.Equal(t, [][2]string{{"pending", "approved"}}, metrics.transitions)
}

func TestSetStatus_WithoutNoteKeepsNotes(t *testing.T) {
	apps, msgs, _, svc := setup(t)
	id := uuid.New()

	apps.On("GetByID", mock.Anything, id).Return(application(id, models.StatusApproved), nil).Twice()
	apps.On("UpdateStatus", mock.Anything, id, models.StatusPending, (*string)(nil), reviewedAt).Return(nil).Once()

	_, err := svc.SetStatus(context.Background(), id, SetStatusInput{Status: models.StatusPending, Note: "  "})
	require.NoError(t, err)
	msgs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSetStatus_SameStatusIsAllowed(t *testing.T) {
	apps, _, metrics, svc := setup(t)
	id := uuid.New()

	apps.On("GetByID", mock.Anything, id).Return(application(id, models.StatusRejected), nil).Twice()
	apps.On("UpdateStatus", mock.Anything, id, models.StatusRejected, (*string)(nil), reviewedAt).Return(nil).Once()

	_, err := svc.SetStatus(context.Background(), id, SetStatusInput{Status: models.StatusRejected})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"rejected", "rejected"}}, metrics.transitions)
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	_, _, _, svc := setup(t)

	_, err := svc.SetStatus(context.Background(), uuid.New(), SetStatusInput{Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}

func TestSetStatus_NotFound(t *testing.T) {
	apps, _, _, svc := setup(t)
	id := uuid.New()
	apps.On("GetByID", mock.Anything, id).Return(nil, repositories.ErrApplicationNotFound).Once()

	_, err := svc.SetStatus(context.Background(), id, SetStatusInput{Status: models.StatusApproved})
	assert.ErrorIs(t, err, apperr.ErrApplicationNotFound)
}

func TestSetStatus_UpdateFailed(t *testing.T) {
	apps, _, metrics, svc := setup(t)
	id := uuid.New()
	apps.On("GetByID", mock.Anything, id).Return(application(id, models.StatusPending), nil).Once()
	apps.On("UpdateStatus", mock.Anything, id, models.StatusRejected, mock.Anything, reviewedAt).
		Return(errors.New("deadlock detected")).Once()

	_, err := svc.SetStatus(context.Background(), id, SetStatusInput{Status: models.StatusRejected, Notify: true})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUpdateFailed, apperr.CodeOf(err))
	assert.Empty(t, metrics.transitions)
}

func TestSetStatus_Spans(t *testing.T) {
	apps := new(mocks.ApplicationRepository)
	msgs := new(mocks.MessageRepository)
	sr := tracetest.NewSpanRecorder()
	svc := NewService(apps, msgs, logtest.New(t),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))),
		WithClock(func() time.Time { return reviewedAt }),
	)

	found, missing := uuid.New(), uuid.New()
	apps.On("GetByID", mock.Anything, found).Return(application(found, models.StatusPending), nil).Once()
	apps.On("UpdateStatus", mock.Anything, found, models.StatusApproved, mock.Anything, reviewedAt).Return(nil).Once()
	apps.On("GetByID", mock.Anything, found).Return(application(found, models.StatusApproved), nil).Once()
	apps.On("GetByID", mock.Anything, missing).Return(nil, repositories.ErrApplicationNotFound).Once()

	_, err := svc.SetStatus(context.Background(), found, SetStatusInput{Status: models.StatusApproved})
	require.NoError(t, err)
	_, err = svc.SetStatus(context.Background(), missing, SetStatusInput{Status: models.StatusApproved})
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "review.SetStatus", s.Name())
	}
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "not found", spans[1].Status().Description)
	apps.AssertExpectations(t)
}

func TestSetStatus_MessageFailureIsNotFatal(t *testing.T) {
	apps, msgs, _, svc := setup(t)
	id := uuid.New()
	apps.On("GetByID", mock.Anything, id).Return(application(id, models.StatusPending), nil).Once()
	apps.On("UpdateStatus", mock.Anything, id, models.StatusRejected, mock.Anything, reviewedAt).Return(nil).Once()
	apps.On("GetByID", mock.Anything, id).Return(application(id, models.StatusRejected), nil).Once()
	msgs.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()

	got, err := svc.SetStatus(context.Background(), id, SetStatusInput{Status: models.StatusRejected, Notify: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestList_ClampsPaging(t *testing.T) {
	apps, _, _, svc := setup(t)
	items := []models.Application{*application(uuid.New(), models.StatusPending)}
	apps.On("List", mock.Anything, repositories.ApplicationFilter{
		Status: models.StatusPending,
		Offset: 200,
		Limit:  MaxPageSize,
	}).Return(items, int64(201), nil).Once()

	page, err := svc.List(context.Background(), ListInput{Status: models.StatusPending, Page: 3, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Equal(t, int64(201), page.Total)
	assert.Len(t, page.Items, 1)
}

func TestList_HugePageDoesNotWrapAround(t *testing.T) {
	apps, _, _, svc := setup(t)
	apps.On("List", mock.Anything, repositories.ApplicationFilter{
		Offset: (MaxPage - 1) * MaxPageSize,
		Limit:  MaxPageSize,
	}).Return([]models.Application{}, int64(3), nil).Once()

	page, err := svc.List(context.Background(), ListInput{Page: math.MaxInt, Limit: MaxPageSize})
	require.NoError(t, err)
	assert.Equal(t, MaxPage, page.Page)
	assert.Empty(t, page.Items)
}

func TestList_Defaults(t *testing.T) {
	apps, _, _, svc := setup(t)
	apps.On("List", mock.Anything, repositories.ApplicationFilter{Limit: DefaultPageSize}).
		Return([]models.Application{}, int64(0), nil).Once()

	page, err := svc.List(context.Background(), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	_, _, _, svc := setup(t)
	_, err := svc.List(context.Background(), ListInput{Status: "archived"})
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}

func TestCountByStatus_FillsMissing(t *testing.T) {
	apps, _, _, svc := setup(t)
	apps.On("CountByStatus", mock.Anything).Return([]models.StatusCount{
		{Status: models.StatusPending, Count: 4},
	}, nil).Once()

	counts, err := svc.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.ApplicationStatus]int64{
		models.StatusPending:  4,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}, counts)
}

func TestMessages_UnknownApplication(t *testing.T) {
	apps, msgs, _, svc := setup(t)
	id := uuid.New()
	apps.On("GetByID", mock.Anything, id).Return(nil, repositories.ErrApplicationNotFound).Once()

	_, err := svc.Messages(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrApplicationNotFound)
	msgs.AssertNotCalled(t, "ListBySubmission", mock.Anything, mock.Anything)
}
