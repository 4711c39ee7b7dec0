package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read before the environment when present.
const DefaultEnvFile = "apikeys.env"

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AITimeout          time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	Gemini  GeminiConfig
	OCR     OCRConfig
	Auth    AuthConfig
	Archive ArchiveConfig

	PromptFile string
}

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MimeType    string
	Temperature float64
}

type OCRConfig struct {
	Languages  []string
	MaxWorkers int
}

type AuthConfig struct {
	Disabled bool
	Secret   string
	Issuer   string
}

type ArchiveConfig struct {
	Account   string
	Key       string
	Container string
}

// Enabled reports whether result archiving is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Account != "" && a.Key != "" && a.Container != ""
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv loads ENV_FILE (default apikeys.env) if it exists, then reads
// the environment. Variables already set in the environment win.
func LoadFromEnv() (*Config, error) {
	envFile := getEnvOrDefault("ENV_FILE", DefaultEnvFile)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		AITimeout:          parseDurationOrDefault("AI_TIMEOUT", 30*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 15*1024*1024), // 15MB
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		Gemini: GeminiConfig{
			APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			BaseURL:     getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash-latest"),
			MimeType:    getEnvOrDefault("GEMINI_MIME_TYPE", "image/jpeg"),
			Temperature: parseFloatOrDefault("GEMINI_TEMPERATURE", 0.1),
		},
		OCR: OCRConfig{
			Languages:  parseListOrDefault("OCR_LANGUAGES", []string{"kor", "eng"}),
			MaxWorkers: int(parseIntOrDefault("OCR_MAX_WORKERS", 0)),
		},
		Auth: AuthConfig{
			Disabled: parseBoolOrDefault("AUTH_DISABLED", false),
			Secret:   os.Getenv("JWT_SECRET"),
			Issuer:   getEnvOrDefault("JWT_ISSUER", "com.example"),
		},
		Archive: ArchiveConfig{
			Account:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
			Key:       strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
			Container: strings.TrimSpace(os.Getenv("AZURE_STORAGE_CONTAINER")),
		},
		PromptFile: strings.TrimSpace(os.Getenv("PROMPT_FILE")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AITimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, ai=%s)", c.RequestTimeout, c.AITimeout)
	}
	if c.RequestTimeout <= c.AITimeout {
		return fmt.Errorf("REQUEST_TIMEOUT (%s) must exceed AI_TIMEOUT (%s)", c.RequestTimeout, c.AITimeout)
	}
	if c.OCR.MaxWorkers < 0 {
		return fmt.Errorf("OCR_MAX_WORKERS must be >= 0 (got %d)", c.OCR.MaxWorkers)
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return fmt.Errorf("GEMINI_TEMPERATURE must be within [0, 2] (got %g)", c.Gemini.Temperature)
	}
	if !c.Auth.Disabled && strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	archiveFields := 0
	for _, v := range []string{c.Archive.Account, c.Archive.Key, c.Archive.Container} {
		if v != "" {
			archiveFields++
		}
	}
	if archiveFields != 0 && archiveFields != 3 {
		return errors.New("AZURE_STORAGE_ACCOUNT, AZURE_STORAGE_KEY and AZURE_STORAGE_CONTAINER must be set together")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '+' }) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
