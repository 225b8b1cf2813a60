package pool

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestLogWriterFragments(t *testing.T) {
	stream := strings.Join([]string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"tagging","file":"a.txt","tokens":12}`,
		`{"time":"2026-01-02T10:00:01Z","level":"ERROR","msg":"mtag failed","grammar":"bm"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"DEBUG","msg":"quiet"}`,
		`perl: warning: Setting locale failed.`,
		``,
		`{"level":"WARN","msg":"unterminated"}`,
	}, "\n")

	var testCases = []struct {
		scenario string
		reader   func(io.Reader) io.Reader
	}{
		{"one byte", iotest.OneByteReader},
		{"half", iotest.HalfReader},
		{"whole", func(r io.Reader) io.Reader { return r }},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			var out bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
			w := newLogWriter(t.Context(), logger, slog.LevelInfo)

			_, err := io.Copy(w, tt.reader(strings.NewReader(stream)))
			require.NoError(t, err)
			w.Flush()

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			require.Len(t, lines, 5)

			expected := []struct {
				msg   string
				level string
				attr  string
				value string
			}{
				{"tagging", "INFO", "file", "a.txt"},
				{"mtag failed", "ERROR", "grammar", "bm"},
				{"quiet", "INFO", "", ""},
				{"perl: warning: Setting locale failed.", "INFO", "", ""},
				{"unterminated", "WARN", "", ""},
			}
			for i, then := range expected {
				rec := gjson.Parse(lines[i])
				require.Equal(t, then.msg, rec.Get("msg").String())
				require.Equal(t, then.level, rec.Get("level").String())
				if then.attr != "" {
					require.Equal(t, then.value, rec.Get(then.attr).String())
				}
			}
			require.Equal(t, int64(12), gjson.Parse(lines[0]).Get("tokens").Int())
			require.NotEqual(t, "2026-01-02T10:00:00Z", gjson.Parse(lines[0]).Get("time").String())
		})
	}
}

func TestLogWriterLongLine(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	w := newLogWriter(t.Context(), logger, slog.LevelWarn)

	_, err := w.Write(bytes.Repeat([]byte("x"), maxLogLine+10))
	require.NoError(t, err)
	require.Empty(t, w.pending)
	require.Contains(t, out.String(), "level=WARN")
}
