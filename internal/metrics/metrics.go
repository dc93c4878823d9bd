// Package metrics exposes Prometheus instrumentation for the relay's
// connection, broker, federation and subscriber subsystems.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "grinbox"

// Registry is the process-wide collector registry. Every metric in this
// package registers against it rather than the global default, so tests
// can spin up an isolated registry if ever needed.
var Registry = prometheus.NewRegistry()
