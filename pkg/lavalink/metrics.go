package lavalink

import (
	"fmt"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType int

const (
	CounterType MetricType = iota
	GaugeType
	TimingType
)

func (mt MetricType) String() string {
	switch mt {
	case CounterType:
		return "counter"
	case GaugeType:
		return "gauge"
	case TimingType:
		return "timing"
	default:
		return "unknown"
	}
}

// Metric represents a single metric measurement
type Metric struct {
	Name      string                 `json:"name"`
	Type      MetricType             `json:"type"`
	Value     float64                `json:"value"`
	Tags      map[string]string      `json:"tags,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// MetricSnapshot represents a snapshot of metrics at a point in time
type MetricSnapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Metrics   map[string]Metric `json:"metrics"`
}

// MetricsCollector aggregates client metrics in memory. A snapshot can be
// pulled with GetAllMetrics for export.
type MetricsCollector struct {
	metrics map[string]Metric
	mu      sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]Metric),
	}
}

// RecordCounter records a counter metric
func (c *MetricsCollector) RecordCounter(name string, value int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.buildMetricKey(name, tags)
	existing, exists := c.metrics[key]

	newValue := float64(value)
	if exists && existing.Type == CounterType {
		newValue = existing.Value + float64(value)
	}

	c.metrics[key] = Metric{
		Name:      name,
		Type:      CounterType,
		Value:     newValue,
		Tags:      c.copyTags(tags),
		Timestamp: time.Now(),
	}
}

// RecordGauge records a gauge metric
func (c *MetricsCollector) RecordGauge(name string, value float64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.buildMetricKey(name, tags)
	c.metrics[key] = Metric{
		Name:      name,
		Type:      GaugeType,
		Value:     value,
		Tags:      c.copyTags(tags),
		Timestamp: time.Now(),
	}
}

// RecordTiming records a timing metric in milliseconds, keeping running
// count/min/max/avg statistics in the metric metadata.
func (c *MetricsCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	value := float64(duration.Nanoseconds()) / 1e6

	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.buildMetricKey(name, tags)
	existing, exists := c.metrics[key]

	var metadata map[string]interface{}
	if exists && existing.Type == TimingType && existing.Metadata != nil {
		metadata = existing.Metadata

		count, _ := metadata["count"].(float64)
		sum, _ := metadata["sum"].(float64)
		min, hasMin := metadata["min"].(float64)
		max, hasMax := metadata["max"].(float64)

		count++
		sum += value
		if !hasMin || value < min {
			min = value
		}
		if !hasMax || value > max {
			max = value
		}

		metadata["count"] = count
		metadata["sum"] = sum
		metadata["min"] = min
		metadata["max"] = max
		metadata["avg"] = sum / count
	} else {
		metadata = map[string]interface{}{
			"count": 1.0,
			"sum":   value,
			"min":   value,
			"max":   value,
			"avg":   value,
		}
	}

	c.metrics[key] = Metric{
		Name:      name,
		Type:      TimingType,
		Value:     value,
		Tags:      c.copyTags(tags),
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// GetMetric retrieves a specific metric
func (c *MetricsCollector) GetMetric(name string, tags map[string]string) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := c.buildMetricKey(name, tags)
	metric, exists := c.metrics[key]
	return metric, exists
}

// GetAllMetrics returns a snapshot of all current metrics
func (c *MetricsCollector) GetAllMetrics() MetricSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := MetricSnapshot{
		Timestamp: time.Now(),
		Metrics:   make(map[string]Metric),
	}
	for key, metric := range c.metrics {
		snapshot.Metrics[key] = metric
	}
	return snapshot
}

// Reset clears all metrics
func (c *MetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]Metric)
}

// buildMetricKey creates a unique key for a metric based on name and tags
func (c *MetricsCollector) buildMetricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	key := name
	for k, v := range tags {
		key += fmt.Sprintf(",%s=%s", k, v)
	}
	return key
}

// copyTags creates a copy of the tags map
func (c *MetricsCollector) copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	copied := make(map[string]string)
	for k, v := range tags {
		copied[k] = v
	}
	return copied
}

// Client metric helpers.

// RecordCommand records a command round-trip with its outcome.
func (c *MetricsCollector) RecordCommand(node, op string, duration time.Duration, outcome string) {
	tags := map[string]string{"node": node, "op": op, "outcome": outcome}
	c.RecordCounter("lavalink.commands.total", 1, tags)
	c.RecordTiming("lavalink.commands.duration", duration, map[string]string{"node": node, "op": op})
}

// RecordTimeout records a command timeout against a node.
func (c *MetricsCollector) RecordTimeout(node string) {
	c.RecordCounter("lavalink.commands.timeouts", 1, map[string]string{"node": node})
}

// RecordStateChange records a node health transition.
func (c *MetricsCollector) RecordStateChange(node string, from, to HealthState) {
	tags := map[string]string{
		"node":       node,
		"from_state": from.String(),
		"to_state":   to.String(),
	}
	c.RecordCounter("lavalink.node.state_changes", 1, tags)
}

// RecordReconnectAttempt records one reconnect attempt against a node.
func (c *MetricsCollector) RecordReconnectAttempt(node string, attempt int) {
	c.RecordCounter("lavalink.node.reconnects", 1, map[string]string{"node": node})
	c.RecordGauge("lavalink.node.reconnect_attempt", float64(attempt), map[string]string{"node": node})
}

// RecordDroppedEvent records an event dropped by the dispatcher.
func (c *MetricsCollector) RecordDroppedEvent(kind string) {
	c.RecordCounter("lavalink.events.dropped", 1, map[string]string{"kind": kind})
}

// RecordStaleEvent records a discarded out-of-date track event.
func (c *MetricsCollector) RecordStaleEvent(node string) {
	c.RecordCounter("lavalink.events.stale", 1, map[string]string{"node": node})
}

// RecordFailover records a failover of some number of guilds off a node.
func (c *MetricsCollector) RecordFailover(node string, guilds int) {
	c.RecordCounter("lavalink.cluster.failovers", 1, map[string]string{"node": node})
	c.RecordCounter("lavalink.cluster.failover_guilds", int64(guilds), map[string]string{"node": node})
}
