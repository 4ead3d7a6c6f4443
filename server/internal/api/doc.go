// Package api implements the HTTP REST API for reportvault-server.
//
// New(collections, queue, history) returns an http.Handler that serves:
//
//	GET  /api/v1/health                          overall state, collection and queue counts
//	GET  /api/v1/queue/status                    queue directory status, counters, diagnostics
//	GET  /api/v1/queue/history?limit=N           journaled outcomes; 404 when the ledger is off
//	GET  /api/v1/collections                     collection names
//	GET  /api/v1/collections/{name}              every document in a collection
//	GET  /api/v1/collections/{name}/{id}         one document; 404 if unknown
//	POST /api/v1/collections/{name}/enqueue      drop a JSON object into the ingestion queue
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. Reads go through the cached collections facade.
// Writes only ever happen via the queue; the API never writes a collection
// file directly.
package api
