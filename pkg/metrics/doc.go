// Package metrics holds the Prometheus collectors of the delivery engine.
// Every method is nil-safe so components can run without metrics.
package metrics
