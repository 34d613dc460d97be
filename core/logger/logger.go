package logger

import (
	"io"
	"log/slog"
	"os"
)

type settings struct {
	level   slog.Level
	json    bool
	output  io.Writer
	attrs   []slog.Attr
	handler slog.Handler
}

// Option configures the logger returned by New.
type Option func(*settings)

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) Option {
	return func(s *settings) { s.level = level }
}

// WithJSONFormatter switches output to JSON.
func WithJSONFormatter() Option {
	return func(s *settings) { s.json = true }
}

// WithOutput redirects log output, mainly for tests.
func WithOutput(w io.Writer) Option {
	return func(s *settings) { s.output = w }
}

// WithAttr attaches attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// WithHandler replaces the handler entirely. Other options are ignored.
func WithHandler(h slog.Handler) Option {
	return func(s *settings) { s.handler = h }
}

// WithDevelopment configures text output at debug level tagged with the app
// name.
func WithDevelopment(appName string) Option {
	return func(s *settings) {
		s.level = slog.LevelDebug
		s.json = false
		s.attrs = append(s.attrs, slog.String("app", appName))
	}
}

// WithProduction configures JSON output at info level tagged with the app
// name.
func WithProduction(appName string) Option {
	return func(s *settings) {
		s.level = slog.LevelInfo
		s.json = true
		s.attrs = append(s.attrs, slog.String("app", appName))
	}
}

// New builds a slog.Logger. Without options it logs text at info level to
// stdout.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, output: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}

	handler := s.handler
	if handler == nil {
		ho := &slog.HandlerOptions{Level: s.level}
		if s.json {
			handler = slog.NewJSONHandler(s.output, ho)
		} else {
			handler = slog.NewTextHandler(s.output, ho)
		}
	}
	if len(s.attrs) > 0 {
		handler = handler.WithAttrs(s.attrs)
	}

	return slog.New(handler)
}

// SetAsDefault installs log as the process-wide slog default.
func SetAsDefault(log *slog.Logger) {
	slog.SetDefault(log)
}
