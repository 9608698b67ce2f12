package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/avalanche-location-etl/internal/domain"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("record dropped", "record_id", "42", "reason", "parse_failure")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "record dropped", entry["msg"])
	assert.Equal(t, "42", entry["record_id"])
	assert.Equal(t, "parse_failure", entry["reason"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("visible", "zone", 11)
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "zone=11")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegister_PrecreatesLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics()
	m.register(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	series := map[string]int{}
	for _, f := range families {
		series[f.GetName()] = len(f.GetMetric())
	}
	assert.Equal(t, len(domain.DropReasons), series["avalanche_etl_records_dropped_total"])
	assert.Equal(t, len(domain.Variants), series["avalanche_etl_records_normalized_total"])
}

func TestObserveDrops(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveDrops(domain.Counts{Input: 6, Output: 2, Unclassified: 1, ParseFailure: 2, OutsideBoundary: 1})
	m.ObserveDrops(domain.Counts{Input: 1, ParseFailure: 1})

	assert.InDelta(t, 1, counterValue(t, m.RecordsDropped.WithLabelValues("unclassified")), 0)
	assert.InDelta(t, 3, counterValue(t, m.RecordsDropped.WithLabelValues("parse_failure")), 0)
	assert.InDelta(t, 0, counterValue(t, m.RecordsDropped.WithLabelValues("out_of_bounds")), 0)
	assert.InDelta(t, 1, counterValue(t, m.RecordsDropped.WithLabelValues("outside_boundary")), 0)
}
