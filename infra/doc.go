// Package infra holds the adapters behind the core interfaces: the gonum
// solver backend, market data sources, parameter files, metrics sinks, the
// MQTT schedule publisher, Sentry monitoring and the zerolog logger.
package infra
