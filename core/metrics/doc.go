// Package metrics defines the sinks optimization runs are reported to.
// Implementations such as the Prometheus and InfluxDB sinks register
// themselves by name; NewMetricsSink combines several into a MultiSink.
package metrics
