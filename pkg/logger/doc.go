// Package logger builds configured slog.Logger instances and provides the
// typed attribute helpers used across the codebase.
//
// The factory supports JSON and text output, environment presets and
// context extractors that inject request-scoped attributes at log time:
//
//	log := logger.New(
//		logger.WithProduction("notify"),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
package logger
