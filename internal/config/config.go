// Package config is the process-wide configuration loader: environment
// variables (optionally backed by a .env file in local dev) bound through
// viper, per spec.md §6's enumerated variable list. Grounded on the
// viper_config.go pattern in the treacherest example (v.AutomaticEnv,
// v.SetDefault, one bound key per env var) adapted from that repo's
// YAML-first layout to an env-first one, since this service ships as a
// twelve-factor container rather than a config-file-driven one.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cmacnamara/prompt-guessr/internal"
)

// Config is every externally-tunable setting the process reads at startup.
// Nothing here is re-read after Load returns.
type Config struct {
	Port        string
	CORSOrigins []string
	RedisAddr   string
	Mode        string

	ImageProvider    internal.ImageProvider
	EnableFallback   bool
	FallbackProvider internal.ImageProvider

	OpenAIAPIKey      string
	HuggingFaceAPIKey string
	HuggingFaceModel  string

	ShutdownTimeout time.Duration
}

// IsProduction reports whether Mode names a production-like environment,
// the gate non-production code (the CORS wildcard allowance) checks.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Mode, "production") || strings.EqualFold(c.Mode, "prod")
}

// Load reads a .env file if present (silently ignored when absent — the
// container deployment path sets real env vars instead) and binds every
// spec.md §6 variable through viper, applying defaults appropriate to
// local development.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // no .env file is the common case outside local dev
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("REDIS_URL", "localhost:6379")
	v.SetDefault("NODE_ENV", "development")
	v.SetDefault("IMAGE_PROVIDER", string(internal.ProviderMock))
	v.SetDefault("ENABLE_FALLBACK", false)
	v.SetDefault("FALLBACK_PROVIDER", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("HUGGINGFACE_API_KEY", "")
	v.SetDefault("HUGGINGFACE_MODEL", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	cfg := Config{
		Port:              v.GetString("PORT"),
		CORSOrigins:       splitOrigins(v.GetString("CORS_ORIGIN")),
		RedisAddr:         v.GetString("REDIS_URL"),
		Mode:              v.GetString("NODE_ENV"),
		ImageProvider:     internal.ImageProvider(v.GetString("IMAGE_PROVIDER")),
		EnableFallback:    v.GetBool("ENABLE_FALLBACK"),
		FallbackProvider:  internal.ImageProvider(v.GetString("FALLBACK_PROVIDER")),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		HuggingFaceAPIKey: v.GetString("HUGGINGFACE_API_KEY"),
		HuggingFaceModel:  v.GetString("HUGGINGFACE_MODEL"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EnableFallback && c.FallbackProvider == "" {
		return fmt.Errorf("config: ENABLE_FALLBACK is set but FALLBACK_PROVIDER is empty")
	}
	if c.EnableFallback && c.FallbackProvider == c.ImageProvider {
		return fmt.Errorf("config: FALLBACK_PROVIDER must differ from IMAGE_PROVIDER")
	}
	return nil
}

// splitOrigins turns a comma-separated CORS_ORIGIN value into a trimmed
// slice; a bare "*" is preserved as the single-element wildcard sentinel
// internal/httpapi checks for.
func splitOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
