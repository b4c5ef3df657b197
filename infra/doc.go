// Package infra holds the adapters around the coupling core: the MQTT
// transport, metrics sinks, Sentry monitoring, tracing and logging
// backends. They depend on core interfaces, never the reverse.
package infra
