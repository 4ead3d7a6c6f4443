// Package ws implements the WebSocket hub for reportvault-server.
//
// Hub manages a set of connected clients. On a fixed interval it broadcasts
// the queue status, and Publish pushes each queue item outcome as it
// happens.
//
// New(queue, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker. It blocks until ctx is
// cancelled, then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// status immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{"event": "queue", "data": { /* same schema as GET /api/v1/queue/status */ }}
//	{"event": "item",  "data": { /* one queue.Result */ }}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
