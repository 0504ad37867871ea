package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Technical metrics
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	ResponseTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_time_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"method", "path"})

	// Business metrics
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Record submissions by kind and outcome",
	}, []string{"kind", "outcome"})

	ReportBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_build_seconds",
		Help:    "Time spent synthesizing one report document, photo fetch included",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	PhotoFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_photo_fetch_total",
		Help: "Photo fetch attempts by result",
	}, []string{"result"})

	ReportDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "report_deliveries_total",
		Help: "Report email delivery attempts by kind, transport and result",
	}, []string{"kind", "transport", "result"})
)

// Submission outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
)
