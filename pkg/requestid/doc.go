// Package requestid correlates log records of one HTTP request.
//
// Middleware accepts a caller supplied X-Request-ID when it is a short token
// of letters, digits, dashes and underscores, and otherwise generates a
// UUID. The id is echoed in the response and stored in the request context;
// LoggerExtractor plugs it into pkg/logger:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor))
package requestid
