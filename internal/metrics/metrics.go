// Package metrics provides Prometheus metrics for external process runs and
// the worker pool.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Results used as the "result" label.
const (
	ResultOK          = "ok"
	ResultExitCode    = "exit_code"
	ResultLaunch      = "launch_error"
	ResultBrokenPipe  = "broken_pipe"
	ResultRunaway     = "runaway"
	ResultCanceled    = "canceled"
	ResultJobError    = "job_error"
	ResultScheduling  = "scheduling_error"
	ResultOtherFailed = "failed"
)

var (
	pipeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nlprun",
		Subsystem: "pipe",
		Name:      "runs_total",
		Help:      "External command invocations by result",
	}, []string{"result"})

	pipeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nlprun",
		Subsystem: "pipe",
		Name:      "run_duration_seconds",
		Help:      "Wall time of external command invocations",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	poolJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nlprun",
		Subsystem: "pool",
		Name:      "jobs_total",
		Help:      "Pool jobs by scheduling mode and result",
	}, []string{"mode", "result"})

	poolBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nlprun",
		Subsystem: "pool",
		Name:      "workers_busy",
		Help:      "Worker processes currently running",
	})
)

// PipeRun records one finished invocation.
func PipeRun(result string, d time.Duration) {
	pipeRuns.WithLabelValues(result).Inc()
	pipeDuration.Observe(d.Seconds())
}

// PipeRuns returns the counter for a result label, for tests.
func PipeRuns(result string) prometheus.Counter {
	return pipeRuns.WithLabelValues(result)
}

// PoolJob records one harvested job.
func PoolJob(mode, result string) {
	poolJobs.WithLabelValues(mode, result).Inc()
}

// PoolJobs returns the counter for a mode and result label, for tests.
func PoolJobs(mode, result string) prometheus.Counter {
	return poolJobs.WithLabelValues(mode, result)
}

func WorkerStarted() { poolBusy.Inc() }
func WorkerStopped() { poolBusy.Dec() }

// PoolBusy returns the busy workers gauge, for tests.
func PoolBusy() prometheus.Gauge {
	return poolBusy
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}()

	slog.DebugContext(ctx, "serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
