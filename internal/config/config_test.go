package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"librarian/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "audiobooks") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, ".local", "share", "librarian") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.DatabasePath() != filepath.Join(cfg.Paths.DataDir, "librarian.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Gemini.APIKey != "gem-key" {
		t.Fatalf("expected gemini key from env, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Pipeline.ProfileConfidenceThreshold != 85 {
		t.Fatalf("unexpected threshold: %d", cfg.Pipeline.ProfileConfidenceThreshold)
	}
	if cfg.Safety.AutoFix {
		t.Fatal("expected auto_fix disabled by default")
	}
	if !cfg.Safety.ProtectAuthorChanges {
		t.Fatal("expected protect_author_changes enabled by default")
	}
	if cfg.Consensus.FieldWeights["author"] != 30 || cfg.Consensus.FieldWeights["series_num"] != 10 {
		t.Fatalf("unexpected field weights: %v", cfg.Consensus.FieldWeights)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
library_dir = "~/books"

[pipeline]
batch_size = 4
profile_confidence_threshold = 90
enable_audio_analysis = true

[consensus.field_weights]
narrator = 20

[naming]
format = "Author - Title"
series_grouping = true

[providers]
enabled = ["OpenLibrary", "openlibrary", "audnexus"]

[llm]
provider = "ollama"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "books") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Pipeline.BatchSize != 4 || cfg.Pipeline.ProfileConfidenceThreshold != 90 || !cfg.Pipeline.EnableAudioAnalysis {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Consensus.FieldWeights["narrator"] != 20 || cfg.Consensus.FieldWeights["author"] != 30 {
		t.Fatalf("expected narrator override merged with defaults, got %v", cfg.Consensus.FieldWeights)
	}
	if cfg.Naming.Format != config.NamingAuthorDashTitle || !cfg.Naming.SeriesGrouping {
		t.Fatalf("unexpected naming config: %+v", cfg.Naming)
	}
	if strings.Join(cfg.Providers.Enabled, ",") != "openlibrary,audnexus" {
		t.Fatalf("expected providers deduplicated, got %v", cfg.Providers.Enabled)
	}
	if !strings.Contains(cfg.LLM.BaseURL, "11434") {
		t.Fatalf("expected ollama base url, got %q", cfg.LLM.BaseURL)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"batch size", func(c *config.Config) { c.Pipeline.BatchSize = 0 }, "pipeline.batch_size"},
		{"floor above threshold", func(c *config.Config) { c.Pipeline.ConfidenceFloor = 95 }, "confidence_floor"},
		{"similarity", func(c *config.Config) { c.Consensus.AgreementSimilarity = 1.5 }, "agreement_similarity"},
		{"naming", func(c *config.Config) { c.Naming.Format = "flat" }, "naming.format"},
		{"custom template", func(c *config.Config) {
			c.Naming.Format = config.NamingCustom
			c.Naming.CustomTemplate = "{author}"
		}, "custom_template"},
		{"provider", func(c *config.Config) { c.Providers.Enabled = []string{"goodreads"} }, "providers.enabled"},
		{"llm provider", func(c *config.Config) { c.LLM.Provider = "claude" }, "llm.provider"},
		{"watch folder", func(c *config.Config) { c.Watch.Enabled = true }, "watch.folder"},
		{"min depth", func(c *config.Config) { c.Safety.MinDepth = 0 }, "safety.min_depth"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, ".config", "librarian", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Naming.VersionSimilarity != 0.70 {
		t.Fatalf("unexpected version similarity: %v", cfg.Naming.VersionSimilarity)
	}
}

func TestGetLLMSelectsGeminiSettings(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "router"
	cfg.Gemini.APIKey = "gem"
	cfg.LLM.Provider = config.ProviderGemini

	llm := cfg.GetLLM()
	if llm.APIKey != "gem" || llm.Model != cfg.Gemini.Model || llm.BaseURL != "" {
		t.Fatalf("unexpected gemini llm config: %+v", llm)
	}

	cfg.LLM.Provider = config.ProviderOpenRouter
	llm = cfg.GetLLM()
	if llm.APIKey != "router" || llm.BaseURL == "" {
		t.Fatalf("unexpected openrouter llm config: %+v", llm)
	}
}
