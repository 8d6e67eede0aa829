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
	mu     sync.Mutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into the given config struct using its
// env tags. The first call loads a .env file if one exists; a missing file
// is fine. Each distinct struct type is parsed once per process and cached,
// so all callers observe the same configuration.
//
//	type PaymentsConfig struct {
//	    APIKey        string `env:"PADDLE_API_KEY,required"`
//	    WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg PaymentsConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := typeKey[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	// Cache a copy so later mutations through the caller's pointer don't
	// leak into other callers.
	loaded[key] = *v
	return nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: failed to load %s: %v", typeKey[T](), err))
	}
}

func typeKey[T any]() string {
	if t := reflect.TypeFor[T](); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
