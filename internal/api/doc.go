// Package api serves the worker's optional HTTP surface.
//
// Two endpoints are exposed on the address configured by api.bind:
//
//	GET /status   JSON snapshot of the live-state tracker and the active capture
//	GET /metrics  Prometheus exposition of the worker's gauges and counters
//
// The server is read-only. It never mutates tracker state and is disabled
// when api.bind is empty.
package api
