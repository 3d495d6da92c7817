// internal/utils/metrics.go
package utils

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max of observed values.
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// slot returns the value cell for name, creating it under the write lock.
// Reads take the read lock only, so existing metrics update without
// contention.
func (m *MetricsCollector) slot(set map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = new(int64)
		set[name] = v
	}
	return v
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(m.counters, name), 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.slot(m.counters, name), value)
}

// GetCounterValue gets the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	v, ok := m.counters[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// SetGauge sets a gauge metric
func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(m.gauges, name), value)
}

// IncGauge increments a gauge metric
func (m *MetricsCollector) IncGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), 1)
}

// DecGauge decrements a gauge metric
func (m *MetricsCollector) DecGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), -1)
}

// GetGauge gets the current value of a gauge
func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	v, ok := m.gauges[name]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		if h, ok = m.histograms[name]; !ok {
			h = &Histogram{min: value, max: value}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}
	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		histograms[name] = map[string]int64{
			"count": h.count,
			"sum":   h.sum,
			"min":   h.min,
			"max":   h.max,
		}
		h.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// 编辑器指标名称
const (
	MetricScansTotal         = "scans_total"
	MetricIssuesFound        = "issues_found_total"
	MetricSavesTotal         = "saves_total"
	MetricSavesFailed        = "saves_failed_total"
	MetricSavesRejected      = "saves_rejected_total"
	MetricTextParseFailures  = "text_parse_failures_total"
	MetricGenerationsTotal   = "generations_total"
	MetricGenerationFallback = "generation_fallbacks_total"
	MetricUploadsTotal       = "uploads_total"
	MetricUploadBytes        = "upload_bytes_total"
	MetricSessionsOpen       = "editor_sessions_open"
	MetricScanDurationUs     = "scan_duration_us"
	MetricSaveDurationMs     = "save_duration_ms"
	MetricGenerateDurationMs = "generate_duration_ms"
	MetricAPIResponseTimeMs  = "api_response_time_ms"
)

// EditorMetrics records editor and API events on a collector.
type EditorMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewEditorMetrics binds editor metrics to the global collector and logger.
func NewEditorMetrics() *EditorMetrics {
	return &EditorMetrics{
		metrics: GetMetricsCollector(),
		logger:  GetLogger(),
	}
}

// NewEditorMetricsWith binds editor metrics to a given collector and logger.
func NewEditorMetricsWith(m *MetricsCollector, l *Logger) *EditorMetrics {
	return &EditorMetrics{metrics: m, logger: l}
}

// Collector returns the underlying collector.
func (em *EditorMetrics) Collector() *MetricsCollector {
	return em.metrics
}

// RecordAPIRequest records metrics for an API request
func (em *EditorMetrics) RecordAPIRequest(endpoint, method string, statusCode int, duration time.Duration) {
	em.metrics.IncrementCounter("api_requests_total")
	em.metrics.IncrementCounter("api_requests_" + method + "_" + endpoint)
	em.metrics.IncrementCounter("api_responses_" + strconv.Itoa(statusCode/100) + "xx")
	em.metrics.RecordHistogram(MetricAPIResponseTimeMs, duration.Milliseconds())

	em.logger.Debug("API request completed", map[string]interface{}{
		"endpoint": endpoint,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}

// RecordScan records a validator run.
func (em *EditorMetrics) RecordScan(storyID string, issues int, duration time.Duration) {
	em.metrics.IncrementCounter(MetricScansTotal)
	em.metrics.AddCounter(MetricIssuesFound, int64(issues))
	em.metrics.RecordHistogram(MetricScanDurationUs, duration.Microseconds())

	em.logger.Info("Story scanned", map[string]interface{}{
		"story_id":    storyID,
		"issues":      issues,
		"duration_us": duration.Microseconds(),
	})
}

// RecordSave records a finished save attempt.
func (em *EditorMetrics) RecordSave(storyID string, err error, duration time.Duration) {
	em.metrics.IncrementCounter(MetricSavesTotal)
	em.metrics.RecordHistogram(MetricSaveDurationMs, duration.Milliseconds())

	fields := map[string]interface{}{
		"story_id":    storyID,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		em.metrics.IncrementCounter(MetricSavesFailed)
		fields["error"] = err.Error()
		em.logger.Error("Story save failed", fields)
		return
	}
	em.logger.Info("Story saved", fields)
}

// RecordSaveRejected records a save refused because another was in flight.
func (em *EditorMetrics) RecordSaveRejected(storyID string) {
	em.metrics.IncrementCounter(MetricSavesRejected)
	em.logger.Warn("Save rejected, another save in flight", map[string]interface{}{
		"story_id": storyID,
	})
}

// RecordParseFailure records a text-mode parse failure.
func (em *EditorMetrics) RecordParseFailure(storyID string, err error) {
	em.metrics.IncrementCounter(MetricTextParseFailures)
	em.logger.Warn("Text mode parse failed", map[string]interface{}{
		"story_id": storyID,
		"error":    err.Error(),
	})
}

// RecordGeneration records a text generation call.
func (em *EditorMetrics) RecordGeneration(provider string, err error, duration time.Duration) {
	em.metrics.IncrementCounter(MetricGenerationsTotal)
	em.metrics.RecordHistogram(MetricGenerateDurationMs, duration.Milliseconds())
	if err != nil {
		em.metrics.IncrementCounter(MetricGenerationFallback)
		em.logger.Warn("Text generation failed, fallback used", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
	}
}

// RecordUpload records a stored upload.
func (em *EditorMetrics) RecordUpload(kind string, size int64) {
	em.metrics.IncrementCounter(MetricUploadsTotal)
	em.metrics.IncrementCounter("uploads_" + kind)
	em.metrics.AddCounter(MetricUploadBytes, size)
}

// SessionOpened and SessionClosed track the open editor session gauge.
func (em *EditorMetrics) SessionOpened() { em.metrics.IncGauge(MetricSessionsOpen) }

func (em *EditorMetrics) SessionClosed() { em.metrics.DecGauge(MetricSessionsOpen) }

// StartMetricsCollection logs a metrics summary every interval until ctx ends.
func (em *EditorMetrics) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				em.logger.Info("Periodic metrics report", map[string]interface{}{
					"metrics": em.metrics.GetMetrics(),
				})
			}
		}
	}()
}
