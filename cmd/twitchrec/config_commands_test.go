package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "cli_user")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowAppliesFlagOverrides(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show", "--streamer", "flag_user", "--tz-format", "en-US"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "flag_user")
	requireContains(t, out, "en-US")
}

func TestDumpConfigWritesFileAndExits(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	out, _, err := runCLI(t, []string{"--dump-config"}, env.configPath)
	if err != nil {
		t.Fatalf("dump-config: %v", err)
	}
	requireContains(t, out, configDumpFile)

	data, err := os.ReadFile(filepath.Join(dir, configDumpFile))
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("dump is not JSON: %v", err)
	}
	if decoded["streamer"] != "cli_user" {
		t.Fatalf("unexpected streamer in dump: %v", decoded["streamer"])
	}
}

func TestInvalidStreamerFlagFails(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"config", "show", "--streamer", "not a login"}, env.configPath); err == nil {
		t.Fatal("expected validation error")
	}
}
