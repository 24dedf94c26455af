package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "state", "Texas")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "Texas", entry["state"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "DEBUG", "TEXT")

	logger.Debug("hello", "rows", 3)

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "rows=3")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseLevel(in))
		})
	}
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsWritten.WithLabelValues("demographics").Add(5)
	a.RecordsFetched.Inc()

	assert.InDelta(t, 5, testutil.ToFloat64(a.RowsWritten.WithLabelValues("demographics")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.RecordsFetched), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RecordsFetched), 0)
}

func TestNewMetrics_RegistersWithRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.RowsWritten.WithLabelValues("education").Add(3)
	m.RunsTotal.WithLabelValues("succeeded").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["census_etl_rows_written_total"])
	assert.True(t, names["census_etl_runs_total"])
	assert.True(t, names["go_goroutines"])

	assert.Panics(t, func() { NewMetrics(reg) }, "second registration on one registry")
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewMetricsForTesting()
	reg.MustRegister(m.RecordsFetched)
	m.RecordsFetched.Add(42)

	err := Push(context.Background(), srv.URL, "Texas", reg)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/census_etl/state/Texas", gotPath)
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "", prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
