// Package logger builds *slog.Logger instances from functional options and
// provides attribute helpers so every component logs with the same keys.
//
//	log := logger.New(
//		logger.WithEnvironment("production"),
//		logger.WithService("pulse"),
//		logger.WithContextExtractors(requestIDExtractor),
//	)
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
//		logger.NotificationID(n.ID),
//		logger.ConnectionID(conn.ID),
//		logger.Error(err),
//	)
//
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
