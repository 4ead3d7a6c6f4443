// Package auth provides API-key authentication for the reportvault HTTP API.
//
// Middleware(mode, header, key) wraps an http.Handler and validates the key
// carried in the named request header. When mode != "apikey" or key == "",
// every request passes through (local development with auth disabled). A
// missing or incorrect key gets 401 Unauthorized before the handler runs.
package auth
