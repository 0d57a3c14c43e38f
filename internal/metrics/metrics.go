package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beatgrok_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Pipeline metrics
	LinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_lines_total",
			Help: "Total number of decoded input lines by outcome",
		},
		[]string{"source", "outcome"}, // outcome: record, no_fields, skip, abort
	)

	BytesDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beatgrok_bytes_decoded_total",
			Help: "Total bytes of decompressed input",
		},
	)

	RecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_records_written_total",
			Help: "Total number of line-protocol records written",
		},
		[]string{"source"},
	)

	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_files_total",
			Help: "Total number of archives processed",
		},
		[]string{"status"}, // status: ok, failed
	)

	FileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beatgrok_file_duration_seconds",
			Help:    "Time taken to process one archive",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)

	// Stream source metrics
	StreamReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_stream_reads_total",
			Help: "Total number of stream read calls",
		},
		[]string{"status"}, // status: ok, empty, failed
	)

	StreamEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beatgrok_stream_entries_total",
			Help: "Total number of stream entries consumed",
		},
	)

	// Sink metrics
	SinkPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_sink_publish_total",
			Help: "Total number of records handed to the sink",
		},
		[]string{"sink", "status"}, // status: success, failed
	)

	SinkPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beatgrok_sink_publish_duration_seconds",
			Help:    "Time taken to publish a batch to the sink",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	SinkPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "beatgrok_sink_publish_retries_total",
			Help: "Total number of sink publish retries",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatgrok_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
