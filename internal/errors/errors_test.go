package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorMatching(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("submit: %w", Wrap(CodeUploadFailed, "upload failed", cause))

	assert.True(t, stderrors.Is(err, &DomainError{Code: CodeUploadFailed}))
	assert.False(t, stderrors.Is(err, ErrApplicationNotFound))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, CodeUploadFailed, CodeOf(err))

	de, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "connection reset", de.Details)
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(stderrors.New("boom")))
}

func TestValidationCarriesFields(t *testing.T) {
	err := Validation(map[string]string{"dba_name": "Required"})
	assert.Equal(t, CodeValidationFailed, err.Code)
	assert.Equal(t, "Required", err.Fields["dba_name"])
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{"no cause", New(CodeUpdateFailed, "Failed to update submission"), ""},
		{"innermost cause", Wrap(CodeRecordInsertFailed, "Failed to create submission",
			fmt.Errorf("insert: %w", stderrors.New("connection reset by peer"))), "connection reset by peer"},
		{"driver noise stripped", Wrap(CodeRecordInsertFailed, "Failed to create submission",
			stderrors.New(`ERROR: duplicate key value violates unique constraint "applications_pkey" (SQLSTATE 23505)`)),
			`duplicate key value violates unique constraint "applications_pkey"`},
		{"first line only", Wrap(CodeUpdateFailed, "Failed to update submission",
			stderrors.New("pq: deadlock detected\nDETAIL: Process 12 waits for ShareLock")), "deadlock detected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Reason())
		})
	}

	long := Wrap(CodeUpdateFailed, "x", stderrors.New(strings.Repeat("a", 300)))
	assert.Len(t, long.Reason(), maxReasonLen)
}
