package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banana_generation_jobs_total",
		Help: "Total number of generation jobs settled, by kind and status",
	}, []string{"kind", "status"})

	GenerationJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "banana_generation_job_duration_seconds",
		Help:    "Wall time from submit to terminal state",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
	}, []string{"kind"})

	PollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banana_poll_attempts_total",
		Help: "Total number of provider status polls",
	}, []string{"kind"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banana_frames_extracted_total",
		Help: "Total number of frames extracted across all sessions",
	})

	BatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "banana_batch_items_total",
		Help: "Total number of batch items settled, by status",
	}, []string{"status"})

	BatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "banana_batch_items_in_flight",
		Help: "Batch items currently submitted and not yet settled",
	})

	RateLimitRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "banana_rate_limit_rejections_total",
		Help: "Generation requests rejected by the minimum-interval gate",
	})

	FrameSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "banana_frame_sessions_active",
		Help: "Frame editing sessions held in memory",
	})
)
