package pool_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/textlab/nlprun/internal/pool"
)

func TestServe(t *testing.T) {
	var testCases = []struct {
		scenario string
		job      string
		input    string
		then     string
	}{
		{"output", "sum", `{"index":3,"seq":[1,2,3]}`, `{"output":{"index":3,"sum":6}}`},
		{"job error", "fail", `2`, `{"error":"no grammar for nn"}`},
		{"panic", "panic", `1`, `{"error":"panic: boom"}`},
		{"bad input", "sum", `[`, ``},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := pool.Serve(t.Context(), registry(), tt.job, strings.NewReader(tt.input), &stdout, &stderr)
			require.NoError(t, err)
			require.True(t, strings.HasSuffix(stdout.String(), "\n"))
			if tt.then == "" {
				require.True(t, gjson.Get(stdout.String(), "error").Exists())
				return
			}
			require.JSONEq(t, tt.then, stdout.String())
		})
	}

	t.Run("logs", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := pool.Serve(t.Context(), registry(), "sum", strings.NewReader(`{"index":1,"seq":[1]}`), &stdout, &stderr)
		require.NoError(t, err)
		rec := gjson.Parse(strings.TrimSpace(stderr.String()))
		require.Equal(t, "processing", rec.Get("msg").String())
		require.Equal(t, int64(1), rec.Get("index").Int())
	})

	t.Run("unknown job", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := pool.Serve(t.Context(), registry(), "nope", strings.NewReader(`1`), &stdout, &stderr)
		require.ErrorIs(t, err, pool.ErrArgument)
		require.Empty(t, stdout.String())
	})
}
