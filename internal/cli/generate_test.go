package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureConfig swaps generateRunner for the duration of the test. Tests that
// call it must not run in parallel.
func captureConfig(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func execute(args ...string) error {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured := captureConfig(t)

	err := execute(
		"--verbose",
		"generate",
		"--input", "spec.yaml",
		"--out", "./build",
		"--namespace", "Petstore",
		"--templates", "./tmpl",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "GET,post",
		"--paths", "^/pets",
		"--no-validation",
		"--dry-run",
		"--force",
		"--strict",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", cfg.Input)
	}
	if cfg.Out != "./build" {
		t.Errorf("out mismatch: got %q", cfg.Out)
	}
	if cfg.Namespace != "Petstore" {
		t.Errorf("namespace mismatch: got %q", cfg.Namespace)
	}
	if cfg.TemplateDir != "./tmpl" {
		t.Errorf("templates mismatch: got %q", cfg.TemplateDir)
	}
	if want := []string{"foo", "bar"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags mismatch: got %v", cfg.IncludeTags)
	}
	if want := []string{"baz"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags mismatch: got %v", cfg.ExcludeTags)
	}
	if want := []string{"get", "post"}; !equalStringSlices(cfg.Methods, want) {
		t.Errorf("methods mismatch: got %v", cfg.Methods)
	}
	if want := []string{"^/pets"}; !equalStringSlices(cfg.Paths, want) {
		t.Errorf("paths mismatch: got %v", cfg.Paths)
	}
	if !cfg.NoValidation || !cfg.DryRun || !cfg.Force || !cfg.Strict || !cfg.Verbose {
		t.Errorf("expected all boolean flags set, got %+v", cfg)
	}
}

func TestGenerateConfigPositionalArgs(t *testing.T) {
	captured := captureConfig(t)

	if err := execute("generate", "api.json", "./client"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg.Input != "api.json" || cfg.Out != "./client" {
		t.Errorf("positional args not applied: %+v", cfg)
	}

	if err := execute("generate", "api.json"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if cfg := *captured; cfg.Out != defaultOutDir {
		t.Errorf("out: want %q got %q", defaultOutDir, cfg.Out)
	}

	if err := execute("generate", "a", "b", "c"); err == nil {
		t.Fatalf("expected error for three positional args")
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
namespace: CfgNS
include_tags:
  - cfgFoo
exclude-tags: cfgBar
methods: [GET]
noValidation: true
dryRun: true
force: false
verbose: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured := captureConfig(t)
	err := execute(
		"--config", configPath,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Input != "flag-spec.yaml" {
		t.Errorf("input: want %q got %q", "flag-spec.yaml", cfg.Input)
	}
	if cfg.Out != "from-config" {
		t.Errorf("out: want from-config got %q", cfg.Out)
	}
	if cfg.Namespace != "CfgNS" {
		t.Errorf("namespace: want CfgNS got %q", cfg.Namespace)
	}
	if want := []string{"flagTag"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags: want %v got %v", want, cfg.IncludeTags)
	}
	if want := []string{"cfgBar"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags: want %v got %v", want, cfg.ExcludeTags)
	}
	if want := []string{"get"}; !equalStringSlices(cfg.Methods, want) {
		t.Errorf("methods: want %v got %v", want, cfg.Methods)
	}
	if !cfg.NoValidation {
		t.Errorf("expected no-validation true from config file")
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.Force {
		t.Errorf("expected force true after flag override")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestGenerateConfigJSONFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"input": "from-json.yaml", "strict": "yes"}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	captured := captureConfig(t)
	if err := execute("-c", configPath, "generate"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg.Input != "from-json.yaml" || !cfg.Strict {
		t.Errorf("json config not applied: %+v", cfg)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := execute("--config", configPath, "generate", "--input", "spec.yaml")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigMissingFile(t *testing.T) {
	err := execute("--config", filepath.Join(t.TempDir(), "nope.yaml"), "generate", "--input", "spec.yaml")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigValidation(t *testing.T) {
	cases := map[string][]string{
		"missing input": {"generate"},
		"bad method":    {"generate", "--input", "x.yaml", "--methods", "fetch"},
		"tag overlap":   {"generate", "--input", "x.yaml", "--include-tags", "a,b", "--exclude-tags", "b"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			err := execute(args...)
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
