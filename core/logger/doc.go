// Package logger provides structured logging utilities built on Go's standard
// slog package: a factory with environment presets and a set of pre-built,
// nil-safe attribute helpers.
//
// Create loggers using the factory function with configuration options:
//
//	import "github.com/silstore/storefront/core/logger"
//
//	// Development: text format, debug level
//	log := logger.New(logger.WithDevelopment("storefront"))
//
//	// Production: JSON format, info level
//	log := logger.New(logger.WithProduction("storefront"))
//
//	// Use the logger
//	log.Info("boot complete",
//		logger.Component("app"),
//		logger.Duration(time.Since(start)),
//	)
//
// Attribute helpers keep naming consistent across the codebase:
//
//	log.Error("cart sync failed",
//		logger.Error(err),
//		logger.Component("cart"),
//		logger.ProductID(id),
//	)
//
// Capture logs during testing with a custom output:
//
//	var buf bytes.Buffer
//	log := logger.New(
//		logger.WithJSONFormatter(),
//		logger.WithOutput(&buf),
//	)
package logger
