package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ─── Events ──────────────────────────────────────────────────────────────────

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "events",
		Name:      "received_total",
		Help:      "Inbound workspace events, labelled by the job they were routed to (or \"ignored\").",
	}, []string{"route"})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "events",
		Name:      "rejected_total",
		Help:      "Inbound requests rejected by signature verification.",
	})

	// ─── Job queue ───────────────────────────────────────────────────────────────

	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "queue",
		Name:      "jobs_enqueued_total",
		Help:      "Jobs published to the queue, by job name.",
	}, []string{"job"})

	// ─── Worker ──────────────────────────────────────────────────────────────────

	WorkerJobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "worker",
		Name:      "jobs_processed_total",
		Help:      "Jobs processed, labelled by job name and outcome.",
	}, []string{"job", "status"})

	WorkerJobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "taskbot",
		Subsystem: "worker",
		Name:      "jobs_inflight",
		Help:      "Jobs currently being executed.",
	}, []string{"job"})

	WorkerJobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskbot",
		Subsystem: "worker",
		Name:      "job_duration_seconds",
		Help:      "Job execution time including retries, in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 240},
	}, []string{"job"})

	WorkerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "worker",
		Name:      "retries_total",
		Help:      "Total retry attempts.",
	}, []string{"job"})

	WorkerDLQTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "worker",
		Name:      "dlq_total",
		Help:      "Total jobs forwarded to the dead-letter topic.",
	}, []string{"job"})

	// ─── Task lifecycle ──────────────────────────────────────────────────────────

	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "tasks",
		Name:      "created_total",
		Help:      "Tasks materialized from source messages.",
	})

	TasksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "tasks",
		Name:      "resolved_total",
		Help:      "Tasks moved to a terminal status, by status.",
	}, []string{"status"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "tasks",
		Name:      "reminders_sent_total",
		Help:      "Reminder replies posted, by remind kind.",
	}, []string{"kind"})

	Replans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "tasks",
		Name:      "replans_total",
		Help:      "Replan runs, by outcome (applied, stale, skipped).",
	}, []string{"outcome"})

	// ─── Scheduler ───────────────────────────────────────────────────────────────

	ScanHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "scheduler",
		Name:      "scan_hits_total",
		Help:      "Due tasks found per scan, by scan (reminder, escalation).",
	}, []string{"scan"})

	ScanDuplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskbot",
		Subsystem: "scheduler",
		Name:      "scan_duplicates_total",
		Help:      "Due tasks skipped because a dispatch for them is already in flight.",
	}, []string{"scan"})
)
