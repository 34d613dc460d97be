package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when the destination is not a non-nil pointer.
	ErrNilPointer = errors.New("config: destination must be a non-nil pointer")

	cacheMu sync.Mutex
	cache   = make(map[reflect.Type]any)

	loadDotenv sync.Once
)

// Load parses environment variables into cfg. The first call for a given type
// reads the environment; subsequent calls return the cached value. A .env file
// in the working directory is loaded once, before the first parse, and never
// overrides variables already set.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}

	loadDotenv.Do(func() {
		// Missing .env is the normal case outside local development.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}

	cache[typ] = *cfg
	return nil
}

// MustLoad is Load that panics on failure. Meant for application startup
// where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
