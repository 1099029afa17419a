package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]*cacheEntry{}

	dotenvOnce sync.Once
)

// LoadEnvFiles reads the given env files into the process environment.
// Variables that are already set are not overridden. It disables the implicit
// .env lookup performed by Load.
func LoadEnvFiles(files ...string) error {
	var err error
	dotenvOnce.Do(func() {
		if len(files) == 0 {
			return
		}
		if loadErr := godotenv.Load(files...); loadErr != nil {
			err = errors.Join(ErrLoadingEnvFile, loadErr)
		}
	})
	return err
}

// Load parses environment variables into v. Each struct type is parsed once;
// later calls copy the cached value. A failed parse is cached too, so a
// misconfigured process fails the same way on every call.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// .env is optional
		_ = godotenv.Load()
	})

	entry := lookup(reflect.TypeFor[T]())
	entry.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			entry.err = errors.Join(ErrParsingConfig, err)
			return
		}
		entry.value = parsed
	})

	if entry.err != nil {
		return entry.err
	}
	cached, ok := entry.value.(T)
	if !ok {
		return ErrConfigNotLoaded
	}
	*v = cached
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func lookup(t reflect.Type) *cacheEntry {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	entry, ok := cache[t]
	if !ok {
		entry = &cacheEntry{}
		cache[t] = entry
	}
	return entry
}
