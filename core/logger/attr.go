package logger

import (
	"log/slog"
	"time"
)

// Attribute helpers use the empty Attr pattern for nil safety, so call sites
// like log.Warn("refresh failed", logger.Error(err)) never need explicit nil
// checks.

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component identifies the subsystem that produced the log entry.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Method creates an attribute for an HTTP method.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path creates an attribute for a request path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode creates an attribute for an HTTP status code.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Count creates an attribute for a count with a custom key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// ProductID creates an attribute for a catalog product reference.
func ProductID(id string) slog.Attr {
	return slog.String("product_id", id)
}
