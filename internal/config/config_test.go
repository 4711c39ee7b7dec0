package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate clears every variable LoadFromEnv reads and points ENV_FILE at a
// file that does not exist.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "REQUEST_TIMEOUT", "AI_TIMEOUT", "MAX_REQUEST_BODY_SIZE", "LOG_LEVEL",
		"GEMINI_API_KEY", "GEMINI_BASE_URL", "GEMINI_MODEL", "GEMINI_MIME_TYPE", "GEMINI_TEMPERATURE",
		"OCR_LANGUAGES", "OCR_MAX_WORKERS", "PROMPT_FILE",
		"JWT_SECRET", "JWT_ISSUER", "AUTH_DISABLED",
		"AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY", "AZURE_STORAGE_CONTAINER",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServerAddress() != "0.0.0.0:8080" {
		t.Errorf("ServerAddress = %q", cfg.ServerAddress())
	}
	if cfg.RequestTimeout != 60*time.Second || cfg.AITimeout != 30*time.Second {
		t.Errorf("timeouts = %s/%s", cfg.RequestTimeout, cfg.AITimeout)
	}
	if cfg.MaxRequestBodySize != 15*1024*1024 {
		t.Errorf("MaxRequestBodySize = %d", cfg.MaxRequestBodySize)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash-latest" || cfg.Gemini.MimeType != "image/jpeg" || cfg.Gemini.Temperature != 0.1 {
		t.Errorf("gemini = %+v", cfg.Gemini)
	}
	if len(cfg.OCR.Languages) != 2 || cfg.OCR.Languages[0] != "kor" || cfg.OCR.Languages[1] != "eng" {
		t.Errorf("OCR languages = %v", cfg.OCR.Languages)
	}
	if cfg.Auth.Issuer != "com.example" {
		t.Errorf("issuer = %q", cfg.Auth.Issuer)
	}
	if cfg.Archive.Enabled() {
		t.Error("archive should be disabled by default")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("HOST", " 127.0.0.1 ")
	t.Setenv("PORT", "9090")
	t.Setenv("AI_TIMEOUT", "10s")
	t.Setenv("REQUEST_TIMEOUT", "20s")
	t.Setenv("OCR_LANGUAGES", "eng+jpn, kor")
	t.Setenv("OCR_MAX_WORKERS", "3")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AZURE_STORAGE_ACCOUNT", "acct")
	t.Setenv("AZURE_STORAGE_KEY", "a2V5")
	t.Setenv("AZURE_STORAGE_CONTAINER", "results")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServerAddress() != "127.0.0.1:9090" {
		t.Errorf("ServerAddress = %q", cfg.ServerAddress())
	}
	if cfg.AITimeout != 10*time.Second {
		t.Errorf("AITimeout = %s", cfg.AITimeout)
	}
	if got := cfg.OCR.Languages; len(got) != 3 || got[1] != "jpn" {
		t.Errorf("OCR languages = %v", got)
	}
	if cfg.OCR.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d", cfg.OCR.MaxWorkers)
	}
	if !cfg.Archive.Enabled() {
		t.Error("archive should be enabled")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"zero body size", map[string]string{"MAX_REQUEST_BODY_SIZE": "0"}},
		{"request timeout below ai timeout", map[string]string{"REQUEST_TIMEOUT": "10s", "AI_TIMEOUT": "30s"}},
		{"negative workers", map[string]string{"OCR_MAX_WORKERS": "-1"}},
		{"temperature", map[string]string{"GEMINI_TEMPERATURE": "3"}},
		{"partial archive", map[string]string{"AZURE_STORAGE_ACCOUNT": "acct"}},
		{"missing secret", map[string]string{"AUTH_DISABLED": "false"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.name != "missing secret" {
				t.Setenv("JWT_SECRET", "s3cret")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			if _, err := LoadFromEnv(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFromEnv_ReadsEnvFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "apikeys.env")
	if err := os.WriteFile(path, []byte("FOOD_ANALYZER_TEST_KEY=from-file\nAUTH_DISABLED=true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("AUTH_DISABLED", "")
	os.Unsetenv("AUTH_DISABLED")
	t.Cleanup(func() { os.Unsetenv("FOOD_ANALYZER_TEST_KEY") })

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Auth.Disabled {
		t.Error("AUTH_DISABLED from env file was not applied")
	}
	if os.Getenv("FOOD_ANALYZER_TEST_KEY") != "from-file" {
		t.Error("env file was not loaded")
	}
}

func TestLoadFromEnv_EnvironmentWinsOverFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "apikeys.env")
	if err := os.WriteFile(path, []byte("GEMINI_MODEL=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("GEMINI_MODEL", "from-env")
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.Model != "from-env" {
		t.Errorf("Model = %q", cfg.Gemini.Model)
	}
}
