package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	// Batch job metrics
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobDuration   prometheus.Histogram
	PollAttempts  prometheus.Histogram

	// Realtime session metrics
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsStopped  prometheus.Counter
	SessionDuration  prometheus.Histogram
	AudioFramesSent  prometheus.Counter
	TranscriptEvents *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Batch job metrics
		JobsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_jobs_submitted_total",
			Help: "Total number of batch transcription jobs submitted",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_jobs_completed_total",
			Help: "Total number of batch transcription jobs completed",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_jobs_failed_total",
			Help: "Total number of batch transcription jobs that failed",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_job_duration_seconds",
			Help:    "End-to-end duration of batch transcription jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),
		PollAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_poll_attempts",
			Help:    "Number of status polls per batch job",
			Buckets: prometheus.LinearBuckets(1, 10, 11), // 1 to 101
		}),

		// Realtime session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voxscribe_active_sessions",
			Help: "Current number of live transcription sessions",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_sessions_started_total",
			Help: "Total number of realtime sessions started",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_sessions_stopped_total",
			Help: "Total number of realtime sessions stopped",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxscribe_session_duration_seconds",
			Help:    "Duration of realtime sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		AudioFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voxscribe_audio_frames_sent_total",
			Help: "Total number of audio frames sent to the provider",
		}),
		TranscriptEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_transcript_events_total",
			Help: "Total number of transcript events received by kind",
		}, []string{"kind"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "voxscribe_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxscribe_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordJobSubmitted increments the jobs submitted counter
func (m *Metrics) RecordJobSubmitted() {
	m.JobsSubmitted.Inc()
}

// RecordJobCompleted records a completed batch job
func (m *Metrics) RecordJobCompleted(durationSeconds float64) {
	m.JobsCompleted.Inc()
	m.JobDuration.Observe(durationSeconds)
}

// RecordJobFailed records a failed batch job
func (m *Metrics) RecordJobFailed(durationSeconds float64) {
	m.JobsFailed.Inc()
	m.JobDuration.Observe(durationSeconds)
}

// RecordPollAttempts records how many polls a job took
func (m *Metrics) RecordPollAttempts(attempts int) {
	m.PollAttempts.Observe(float64(attempts))
}

// RecordSessionStarted increments session counters
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionStopped records a stopped session and its duration
func (m *Metrics) RecordSessionStopped(durationSeconds float64) {
	m.SessionsStopped.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAudioFrame increments the audio frames sent counter
func (m *Metrics) RecordAudioFrame() {
	m.AudioFramesSent.Inc()
}

// RecordTranscriptEvent records a transcript event by kind
func (m *Metrics) RecordTranscriptEvent(kind string) {
	m.TranscriptEvents.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
