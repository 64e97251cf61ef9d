package submission

import (
	"io"
	"time"

	"onboard/internal/intake"
)

const (
	OutcomeSuccess      = "success"
	OutcomeUploadFailed = "upload_failed"
	OutcomeInsertFailed = "insert_failed"
	OutcomeRejected     = "rejected"

	compensationTimeout = 30 * time.Second
)

// Document is one file to upload.
type Document struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Input is a validated intake with its document contents.
type Input struct {
	Business  intake.Business
	Owner     intake.Owner
	Documents map[intake.DocumentType]Document
}

// MetricsCollector receives submission measurements.
type MetricsCollector interface {
	RecordSubmission(outcome string)
	RecordUploadDuration(docType string, d time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSubmission(string)                    {}
func (NoopMetricsCollector) RecordUploadDuration(string, time.Duration) {}

type uploadError struct {
	docType intake.DocumentType
	err     error
}

func (e *uploadError) Error() string {
	return string(e.docType) + ": " + e.err.Error()
}

func (e *uploadError) Unwrap() error { return e.err }
