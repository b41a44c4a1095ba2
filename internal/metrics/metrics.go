package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExamsStarted counts sessions that reached the EXAM phase, by mode.
	ExamsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Exam sessions that entered the exam phase",
		},
		[]string{"mode"},
	)

	// ExamsSubmitted counts scored sessions, by trigger (manual or timeout).
	ExamsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_submitted_total",
			Help: "Exam sessions scored",
		},
		[]string{"trigger"},
	)

	// QuestionsAcquired counts questions delivered per origin (bank, ai, fixed).
	QuestionsAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_questions_acquired_total",
			Help: "Questions delivered to sessions by origin",
		},
		[]string{"origin"},
	)

	// AcquisitionFailures counts launches that returned to selection.
	AcquisitionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_acquisition_failures_total",
			Help: "Question acquisitions that produced no usable exam",
		},
	)

	// AcquisitionDuration tracks how long the loading phase takes.
	AcquisitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_acquisition_duration_seconds",
			Help:    "Time spent acquiring questions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// HarvestFailures counts AI batches that could not be submitted for harvesting.
	HarvestFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_harvest_failures_total",
			Help: "AI batches that failed to reach the harvesting queue",
		},
	)

	// ResultSaveFailures counts results that could not be persisted.
	ResultSaveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_result_save_failures_total",
			Help: "Exam results that failed to persist",
		},
	)

	// ActiveBattles tracks rooms currently held by this instance.
	ActiveBattles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "battle_rooms_current",
			Help: "Battle rooms held in memory",
		},
	)

	// BattlePollErrors counts failed polls in the battle synchronizer.
	BattlePollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "battle_poll_errors_total",
			Help: "Battle state polls that failed",
		},
	)
)
