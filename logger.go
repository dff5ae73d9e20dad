package framed

import "log/slog"

// Logger is the interface for structured logging, compatible with
// *slog.Logger from the standard library. Applications can provide their own
// implementation or rely on the slog default.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.Default()
}
