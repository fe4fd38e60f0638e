package infra

import (
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Server-held provider credentials. Either may be empty; requests can
	// carry a per-request key in the credential header instead.
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	ModelScopeAPIKey string
	ModelScopeModel  string
	ModelScopeBase   string

	// Object storage. When R2 settings are absent the service falls back to
	// STORAGE_PATH on the local filesystem; when that is empty too, uploads
	// are disabled and answered with STORAGE_UNAVAILABLE.
	R2AccountID      string
	R2AccessKeyID    string
	R2SecretKey      string
	R2Bucket         string
	StoragePublicURL string
	StoragePath      string

	ProviderTimeout  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-3-pro-image-preview"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ModelScopeAPIKey: os.Getenv("MODELSCOPE_API_KEY"),
		ModelScopeModel:  getEnv("MODELSCOPE_MODEL", "MusePublic/489_ckpt_FLUX_1"),
		ModelScopeBase:   getEnv("MODELSCOPE_BASE_URL", "https://api-inference.modelscope.cn"),
		R2AccountID:      os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:    os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretKey:      os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2Bucket:         os.Getenv("R2_BUCKET"),
		StoragePublicURL: os.Getenv("STORAGE_PUBLIC_BASE_URL"),
		StoragePath:      os.Getenv("STORAGE_PATH"),
		ProviderTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}
	return cfg, nil
}

// HasR2 reports whether all settings needed for the R2 bucket store are set.
func (c *Config) HasR2() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretKey != "" && c.R2Bucket != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
