package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("EBUSBRIDGE_CONFIG")
	defer os.Setenv("EBUSBRIDGE_CONFIG", originalEnv)

	os.Setenv("EBUSBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDefinitionsFile verifies run fails when the message
// definitions file cannot be read.
func TestRun_MissingDefinitionsFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  topic: "ebusd"
  version: "3.1"

bus:
  definitions_file: "` + filepath.Join(tmpDir, "missing.yaml") + `"
  mode: simulator

history:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("EBUSBRIDGE_CONFIG")
	defer os.Setenv("EBUSBRIDGE_CONFIG", originalEnv)
	os.Setenv("EBUSBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with missing definitions file")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("EBUSBRIDGE_CONFIG")
	defer os.Setenv("EBUSBRIDGE_CONFIG", originalEnv)

	os.Unsetenv("EBUSBRIDGE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("EBUSBRIDGE_CONFIG")
	defer os.Setenv("EBUSBRIDGE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("EBUSBRIDGE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_CancelledWithUnreachableBroker verifies the bridge loop keeps
// retrying an unreachable broker and still shuts down on cancellation.
func TestRun_CancelledWithUnreachableBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow reconnect loop test in short mode")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	definitionsPath := filepath.Join(tmpDir, "messages.yaml")

	definitionsContent := `
messages:
  - circuit: bai
    name: Status01
    fields:
      - name: temp
        type: number
        unit: "°C"
    values: ["21.5"]
`
	if err := os.WriteFile(definitionsPath, []byte(definitionsContent), 0600); err != nil {
		t.Fatalf("failed to write definitions file: %v", err)
	}

	configContent := `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
  topic: "ebusd"
  version: "3.1"

bus:
  definitions_file: "` + definitionsPath + `"
  mode: simulator

history:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("EBUSBRIDGE_CONFIG")
	defer os.Setenv("EBUSBRIDGE_CONFIG", originalEnv)
	os.Setenv("EBUSBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() should shut down cleanly on cancellation, got %v", err)
	}
}
