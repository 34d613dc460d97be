// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/silstore/storefront/core/config"
//
//	type BackendConfig struct {
//		BaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`
//		Timeout int    `env:"API_TIMEOUT_SECONDS" envDefault:"15"`
//	}
//
//	func main() {
//		var backend BackendConfig
//
//		// Load with error handling
//		if err := config.Load(&backend); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&backend)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 BackendConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 BackendConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently:
//
//	type CacheConfig struct {
//		Dir string `env:"STATE_DIR" envDefault:".storefront"`
//	}
//
//	type RedisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	// Each type has its own cache entry
//	config.MustLoad(&CacheConfig{})
//	config.MustLoad(&RedisConfig{})
package config
