// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// JSON encoding and decoding, uniform error bodies and the middleware every
// warden endpoint runs behind.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "resource is required")
//	httputil.WriteForbidden(w, "access denied")
//
// Error bodies have the shape {"error": "...", "request_id": "..."}.
// WriteInternalError never exposes the underlying cause.
//
// # Request Parsing
//
//	var req evaluateRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Bodies are capped at DefaultMaxBodyBytes and unknown fields are rejected.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.ContentTypeMiddleware,
//	)
//
// # Related Packages
//
//   - pkg/api: Route handlers
//   - pkg/observability: Request id context helpers
package httputil
