package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ops HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_http_requests_total",
			Help: "Total number of ops HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "captionpipe_http_request_duration_seconds",
			Help:    "Ops HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline Metrics
	QueueItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_queue_items_processed_total",
			Help: "Total number of queue items processed, by outcome",
		},
		[]string{"outcome"},
	)

	QueueItemsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "captionpipe_queue_items_in_progress",
			Help: "Number of queue items currently being processed",
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "captionpipe_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "captionpipe_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"stage", "status"},
	)

	CaptionBurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_caption_burns_total",
			Help: "Caption burn attempts, by result",
		},
		[]string{"result"},
	)

	ContentGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_content_generations_total",
			Help: "Content generation calls, by kind and status",
		},
		[]string{"kind", "status"},
	)

	// Queue Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "captionpipe_queue_depth",
			Help: "Number of messages waiting in the work queue",
		},
	)

	DeadLetterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "captionpipe_dead_letter_queue_depth",
			Help: "Number of messages in the dead letter queue",
		},
	)

	RedeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captionpipe_redeliveries_total",
			Help: "Messages scheduled for redelivery after a handler error",
		},
	)

	DeadLetteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_dead_lettered_total",
			Help: "Messages moved to the dead letter queue, by reason",
		},
		[]string{"reason"},
	)

	MalformedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "captionpipe_malformed_messages_total",
			Help: "Messages rejected because their body could not be decoded",
		},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_storage_bytes_transferred_total",
			Help: "Total bytes transferred to storage",
		},
		[]string{"operation"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captionpipe_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an ops HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordStage records the duration of one pipeline stage
func RecordStage(stage string, failed bool, duration float64) {
	status := "success"
	if failed {
		status = "failure"
	}
	StageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordOutcome records a finished pipeline run
func RecordOutcome(outcome string, duration float64) {
	QueueItemsProcessedTotal.WithLabelValues(outcome).Inc()
	PipelineDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordCaptionBurn records what happened to a caption burn request
func RecordCaptionBurn(result string) {
	CaptionBurnsTotal.WithLabelValues(result).Inc()
}

// RecordContentGeneration records a content generation call
func RecordContentGeneration(kind string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	ContentGenerationsTotal.WithLabelValues(kind, status).Inc()
}

// UpdateQueueDepth sets the queue depth gauges
func UpdateQueueDepth(depth, deadLettered int) {
	QueueDepth.Set(float64(depth))
	DeadLetterQueueDepth.Set(float64(deadLettered))
}

// RecordRedelivery records a message scheduled for redelivery
func RecordRedelivery() {
	RedeliveriesTotal.Inc()
}

// RecordDeadLetter records a message moved to the dead letter queue
func RecordDeadLetter(reason string) {
	DeadLetteredTotal.WithLabelValues(reason).Inc()
}

// RecordMalformedMessage records a rejected message
func RecordMalformedMessage() {
	MalformedMessagesTotal.Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation string, err error, bytesTransferred int64) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	if err == nil && bytesTransferred > 0 {
		StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
