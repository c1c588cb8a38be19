// Package logger builds configured slog.Logger instances with environment
// presets, static attributes, and context-driven attribute injection.
//
// The factory wraps the chosen slog handler in a decorator that pulls
// request-scoped values (tenant id, request id) out of the context at log
// time, so call sites don't have to thread them manually.
//
//	log := logger.New(
//		logger.WithProduction("notify"),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//
// The attr helpers (logger.Error, logger.TenantID, logger.NotificationID, ...)
// keep attribute keys consistent across packages.
package logger
