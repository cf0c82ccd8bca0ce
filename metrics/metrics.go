package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ClientMetrics struct {
	RetryCount      *prometheus.GaugeVec
	FailureCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestCount    *prometheus.CounterVec
}

type HLSMetrics struct {
	ConvertRequestCount       prometheus.Counter
	ConvertRequestDurationSec *prometheus.SummaryVec
	HTTPRequestsInFlight      prometheus.Gauge

	JobsInFlight         prometheus.Gauge
	JobCount             *prometheus.CounterVec
	JobDurationSec       *prometheus.SummaryVec
	StageDurationSec     *prometheus.HistogramVec
	RenditionDurationSec *prometheus.HistogramVec
	RenditionOutputBytes *prometheus.CounterVec
	RenditionCount       *prometheus.CounterVec

	StatusCallback ClientMetrics
}

var encodeBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600}

func NewMetrics() *HLSMetrics {
	m := &HLSMetrics{
		// /api/hls/convert request metrics
		ConvertRequestCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convert_request_count",
			Help: "The total number of requests to /api/hls/convert",
		}),
		ConvertRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "convert_request_duration_seconds",
			Help: "The latency of the requests made to /api/hls/convert in seconds broken up by success and status code",
		}, []string{"success", "status_code"}),
		HTTPRequestsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "The number of HTTP requests currently being served",
		}),

		// Job metrics
		JobsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "conversion_jobs_in_flight",
			Help: "The number of conversion jobs currently running",
		}),
		JobCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversion_job_count",
			Help: "The total number of finished conversion jobs, broken up by result and error kind",
		}, []string{"result", "error_kind"}),
		JobDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "conversion_job_duration_seconds",
			Help: "The time that conversion jobs take to run, broken up by result",
		}, []string{"result"}),
		StageDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "conversion_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: encodeBuckets,
		}, []string{"stage"}),
		RenditionDurationSec: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rendition_encode_duration_seconds",
			Help:    "Time taken to encode a single rendition",
			Buckets: encodeBuckets,
		}, []string{"rendition"}),
		RenditionOutputBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rendition_output_bytes",
			Help: "The total size of the segments written, per rendition",
		}, []string{"rendition"}),
		RenditionCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rendition_count",
			Help: "The total number of renditions encoded",
		}, []string{"rendition"}),

		// Clients metrics
		StatusCallback: ClientMetrics{
			RetryCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "status_callback_retry_count",
				Help: "The number of retries of a successful status callback",
			}, []string{"host"}),
			FailureCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "status_callback_failure_count",
				Help: "The total number of failed status callbacks",
			}, []string{"host", "status_code"}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "status_callback_duration",
				Help:    "Time taken to send status callbacks",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}, []string{"host"}),
			RequestCount: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "status_callback_count",
				Help: "The total number of status callbacks sent",
			}, []string{"host"}),
		},
	}

	return m
}

var Metrics = NewMetrics()
