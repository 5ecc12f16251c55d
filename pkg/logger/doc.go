// Package logger builds configured slog.Logger instances with sane
// defaults for development and production environments.
package logger
