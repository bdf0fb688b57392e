package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronOutcome labels how one scheduled run ended.
type CronOutcome string

const (
	CronSucceeded CronOutcome = "success"
	CronFailed    CronOutcome = "failure"
	CronSkipped   CronOutcome = "skipped"
)

// CronJobMetrics tracks the cron worker's jobs. Alert on
// cron_job_last_success_timestamp_seconds going stale rather than on failures.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

// NewCronJobMetrics registers the cron collectors. A nil registerer yields a
// no-op collector.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Wall time of cron job runs that held the lock.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job ticks by outcome; skipped means another instance held the lock.",
	}, []string{"job", "outcome"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per job.",
	}, []string{"job"})
	reg.MustRegister(duration, runs, lastSuccess)
	return &CronJobMetrics{
		duration:    duration,
		runs:        runs,
		lastSuccess: lastSuccess,
		now:         time.Now,
	}
}

// ObserveRun records one tick of job. Duration is ignored for skipped runs.
func (c *CronJobMetrics) ObserveRun(job string, outcome CronOutcome, duration time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, normalizeLabel(string(outcome))).Inc()
	if outcome == CronSkipped {
		return
	}
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	if outcome == CronSucceeded {
		c.lastSuccess.WithLabelValues(job).Set(float64(c.now().Unix()))
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
