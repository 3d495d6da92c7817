// internal/utils/utils_test.go
package utils

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, INFO)

	l.Debug("hidden", nil)
	l.Info("story saved", map[string]interface{}{"story_id": "s1", "duration_ms": 12})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatal("debug line written at INFO level")
	}
	if !strings.HasPrefix(out, "[INFO] ") {
		t.Fatalf("unexpected prefix: %q", out)
	}
	if !strings.Contains(out, "utils_test.go") {
		t.Fatalf("expected caller file in %q", out)
	}
	if !strings.HasSuffix(out, "- story saved | duration_ms=12 story_id=s1\n") {
		t.Fatalf("fields should be sorted: %q", out)
	}
}

func TestLoggerFatalUsesExit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, INFO)
	code := -1
	l.exit = func(c int) { code = c }
	l.Fatalf("boom %d", 1)
	if code != 1 || !strings.Contains(buf.String(), "[FATAL]") {
		t.Fatalf("code=%d out=%q", code, buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{"debug": DEBUG, "WARN": WARNING, "error": ERROR, "": INFO, "nonsense": INFO}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetricsCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.IncrementCounter("hits")
			m.RecordHistogram("lat", int64(i))
			m.IncGauge("open")
		}(i)
	}
	wg.Wait()

	if m.GetCounterValue("hits") != 50 || m.GetGauge("open") != 50 {
		t.Fatalf("hits=%d open=%d", m.GetCounterValue("hits"), m.GetGauge("open"))
	}
	h := m.GetMetrics()["histograms"].(map[string]map[string]int64)["lat"]
	if h["count"] != 50 || h["min"] != 0 || h["max"] != 49 || h["sum"] != 1225 {
		t.Fatalf("unexpected histogram %v", h)
	}
}

func TestEditorMetrics(t *testing.T) {
	var buf bytes.Buffer
	em := NewEditorMetricsWith(NewMetricsCollector(), NewLogger(&buf, DEBUG))

	em.RecordScan("s1", 3, 250*time.Microsecond)
	em.RecordSave("s1", nil, 5*time.Millisecond)
	em.RecordSave("s1", errors.New("disk"), time.Millisecond)
	em.RecordSaveRejected("s1")
	em.RecordParseFailure("s1", errors.New("line 2"))
	em.RecordAPIRequest("/api/stories", "GET", 404, time.Millisecond)
	em.SessionOpened()

	c := em.Collector()
	checks := map[string]int64{
		MetricScansTotal:        1,
		MetricIssuesFound:       3,
		MetricSavesTotal:        2,
		MetricSavesFailed:       1,
		MetricSavesRejected:     1,
		MetricTextParseFailures: 1,
		"api_responses_4xx":     1,
	}
	for name, want := range checks {
		if got := c.GetCounterValue(name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if c.GetGauge(MetricSessionsOpen) != 1 {
		t.Errorf("sessions gauge = %d", c.GetGauge(MetricSessionsOpen))
	}
	if !strings.Contains(buf.String(), "Story save failed") {
		t.Errorf("expected failed save to be logged")
	}
}
