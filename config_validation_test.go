package main

import (
	"os"
	"path/filepath"
	"testing"
)

const testRescueAPIURL = "http://127.0.0.1:9000"

func setupRequiredConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RESCUE_API_URL", testRescueAPIURL)
	t.Setenv("APP_SIGNING_SECRET", testSigningSecret)
	t.Setenv("OPERATOR_EMAIL", "")
	t.Setenv("OPERATOR_PASSWORD", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("GIN_ADDR", "")
	t.Setenv("PUBLIC_BASE_URL", "")
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	setupRequiredConfigEnv(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected development default, got %q", cfg.Env)
	}
	if cfg.RescueAPIURL != testRescueAPIURL {
		t.Fatalf("unexpected rescue API URL %q", cfg.RescueAPIURL)
	}
}

func TestLoadConfigRequiresRescueAPIURL(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("RESCUE_API_URL", "")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error when RESCUE_API_URL is missing")
	}
}

func TestLoadConfigStripsTrailingSlashFromRescueAPIURL(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("RESCUE_API_URL", testRescueAPIURL+"/")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}
	if cfg.RescueAPIURL != testRescueAPIURL {
		t.Fatalf("expected trailing slash stripped, got %q", cfg.RescueAPIURL)
	}
}

func TestLoadConfigRejectsShortSigningSecret(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("APP_SIGNING_SECRET", "short")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for short signing secret")
	}
}

func TestLoadConfigRequiresPasswordWithOperatorEmail(t *testing.T) {
	setupRequiredConfigEnv(t)
	t.Setenv("OPERATOR_EMAIL", "operator@pawrescue.org")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error when operator email is set without a password")
	}

	t.Setenv("OPERATOR_PASSWORD", "hunter2hunter2")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("expected config to load: %v", err)
	}
	if cfg.OperatorEmail != "operator@pawrescue.org" {
		t.Fatalf("unexpected operator email %q", cfg.OperatorEmail)
	}
}

func TestLoadDotEnvFileDoesNotOverrideExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nDOTENV_TEST_A=from-file\nDOTENV_TEST_B=\"quoted\"\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("DOTENV_TEST_A", "from-env")
	t.Setenv("DOTENV_TEST_B", "")

	if err := loadDotEnvFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if os.Getenv("DOTENV_TEST_A") != "from-env" {
		t.Fatal("existing env value must win over .env")
	}
	if os.Getenv("DOTENV_TEST_B") != "quoted" {
		t.Fatalf("expected quoted value to be unwrapped, got %q", os.Getenv("DOTENV_TEST_B"))
	}
}

func TestLoadDotEnvFileMissingFileIsNotAnError(t *testing.T) {
	if err := loadDotEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file must be tolerated: %v", err)
	}
}
