// Package metrics exposes Prometheus collectors for the onboarding flows.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "onboard"

// Metrics implements the collector interfaces of the services.
type Metrics struct {
	SubmissionsTotal  *prometheus.CounterVec
	UploadDuration    *prometheus.HistogramVec
	StatusTransitions *prometheus.CounterVec
	OrphansSwept      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	AdminCacheLookups *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Application submissions by outcome",
			},
			[]string{"outcome"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_upload_duration_seconds",
				Help:      "Document upload latency by document type",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"document_type"},
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Application status changes",
			},
			[]string{"from", "to"},
		),
		OrphansSwept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphaned_documents_swept_total",
				Help:      "Orphaned document cleanup attempts by result",
			},
			[]string{"result"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		AdminCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_flag_lookups_total",
				Help:      "Admin flag lookups by cache result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RecordSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordUploadDuration(docType string, d time.Duration) {
	m.UploadDuration.WithLabelValues(docType).Observe(d.Seconds())
}

func (m *Metrics) RecordTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordOrphanSweep(resolved, failed int) {
	m.OrphansSwept.WithLabelValues("resolved").Add(float64(resolved))
	m.OrphansSwept.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordAdminLookup(result string) {
	m.AdminCacheLookups.WithLabelValues(result).Inc()
}
