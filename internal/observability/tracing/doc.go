// Package tracing provides OpenTelemetry tracing integration.
//
// It provides:
//   - GetTracer: the global "crawlcast" tracer from the OpenTelemetry global provider
//   - Middleware: HTTP middleware that extracts W3C trace context from incoming
//     headers, starts a server span per request, records method, path and status
//     code, marks 5xx responses as errors and sets the X-Trace-Id response header
//
// The package does not configure a tracer provider or an exporter, and it does
// not trace database queries; spans go to whatever global provider is installed.
//
// Example usage:
//
//	import "crawlcast/internal/observability/tracing"
//
//	handler := tracing.Middleware(mux)
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process-request")
//	    defer span.End()
//	    // ... process request ...
//	}
package tracing
