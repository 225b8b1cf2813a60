package metrics_test

import (
	"testing"
	"time"

	"github.com/textlab/nlprun/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(metrics.PipeRuns(metrics.ResultRunaway))
	metrics.PipeRun(metrics.ResultRunaway, 10*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.PipeRuns(metrics.ResultRunaway)))

	before = testutil.ToFloat64(metrics.PoolJobs("direct", metrics.ResultOK))
	metrics.PoolJob("direct", metrics.ResultOK)
	metrics.PoolJob("direct", metrics.ResultOK)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.PoolJobs("direct", metrics.ResultOK)))

	busy := testutil.ToFloat64(metrics.PoolBusy())
	metrics.WorkerStarted()
	require.Equal(t, busy+1, testutil.ToFloat64(metrics.PoolBusy()))
	metrics.WorkerStopped()
	require.Equal(t, busy, testutil.ToFloat64(metrics.PoolBusy()))
}
