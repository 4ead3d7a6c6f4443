// Package metrics renders the ingestion queue's state as Prometheus text
// exposition for the /metrics endpoint.
package metrics
