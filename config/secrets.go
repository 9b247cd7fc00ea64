package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrSecretNotFound is returned when a secret is not set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore resolves named secrets.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, def string) string
}

// EnvironmentSecretStore reads secrets from environment variables. KEY_FILE,
// when set, names a file holding the secret.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore { return &EnvironmentSecretStore{} }

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	if path := os.Getenv(key + "_FILE"); path != "" {
		b, err := os.ReadFile(path) // #nosec G304 - operator supplied secret path
		if err != nil {
			return "", fmt.Errorf("read secret %s: %w", key, err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, def string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// ApplySecrets fills empty secret fields of cfg from store.
func ApplySecrets(ctx context.Context, cfg *Config, store SecretStore) error {
	fields := []struct {
		key string
		dst *string
	}{
		{"FINQUEST_SECURITY_JWT_SECRET", &cfg.Security.JWTSecret},
		{"FINQUEST_REDIS_PASSWORD", &cfg.Storage.Redis.Password},
		{"FINQUEST_SQL_DSN", &cfg.Storage.SQL.DSN},
		{"FINQUEST_WEBHOOK_SECRET", &cfg.Webhooks.Secret},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := store.Get(ctx, f.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
