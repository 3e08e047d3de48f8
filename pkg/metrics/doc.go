// Package metrics exposes chronodb's Prometheus metrics: indexing
// throughput, pending-transaction depth, consume-loop and commit
// latency, and per-operation query duration. Handler serves the
// standard /metrics endpoint via promhttp.
package metrics
