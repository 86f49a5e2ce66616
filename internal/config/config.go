package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	WorkDir    string `toml:"work_dir"`
}

// Library describes what the scanner treats as a book folder.
type Library struct {
	AudioExtensions []string `toml:"audio_extensions"`
	EbookExtensions []string `toml:"ebook_extensions"`
	IgnoreFolders   []string `toml:"ignore_folders"`
}

// Pipeline contains the layer switches and thresholds used by the identification pipeline.
type Pipeline struct {
	BatchSize                  int     `toml:"batch_size"`
	ProfileConfidenceThreshold int     `toml:"profile_confidence_threshold"`
	ConfidenceFloor            int     `toml:"confidence_floor"`
	DeepScanMode               bool    `toml:"deep_scan_mode"`
	EnableAudioAnalysis        bool    `toml:"enable_audio_analysis"`
	EnableAIVerification       bool    `toml:"enable_ai_verification"`
	EnableAPILookups           bool    `toml:"enable_api_lookups"`
	APIMatchThreshold          float64 `toml:"api_match_threshold"`
	MaxRetries                 int     `toml:"max_retries"`
}

// Consensus tunes how observations from different sources are merged.
type Consensus struct {
	AgreementSimilarity float64        `toml:"agreement_similarity"`
	AgreementBonusTwo   int            `toml:"agreement_bonus_two"`
	AgreementBonusThree int            `toml:"agreement_bonus_three"`
	AgreementBonusMany  int            `toml:"agreement_bonus_many"`
	ConflictPenalty     int            `toml:"conflict_penalty"`
	LowConfidence       int            `toml:"low_confidence"`
	FieldWeights        map[string]int `toml:"field_weights"`
	SourceWeights       map[string]int `toml:"source_weights"`
}

// Safety contains the policy switches consulted before a fix is applied.
type Safety struct {
	AutoFix              bool `toml:"auto_fix"`
	ProtectAuthorChanges bool `toml:"protect_author_changes"`
	MinDepth             int  `toml:"min_depth"`
}

// Naming controls how destination folders are laid out.
type Naming struct {
	Format                    string  `toml:"format"`
	CustomTemplate            string  `toml:"custom_template"`
	SeriesGrouping            bool    `toml:"series_grouping"`
	StandardizeAuthorInitials bool    `toml:"standardize_author_initials"`
	VersionSimilarity         float64 `toml:"version_similarity"`
	MetadataEmbedding         bool    `toml:"metadata_embedding"`
}

// Providers contains settings shared by the metadata lookup providers.
type Providers struct {
	Enabled               []string `toml:"enabled"`
	MaxRequestsPerHour    int      `toml:"max_requests_per_hour"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	CacheTTLSeconds       int      `toml:"cache_ttl_seconds"`
	FailureThreshold      int      `toml:"failure_threshold"`
	CooldownSeconds       int      `toml:"cooldown_seconds"`
	AudnexusURL           string   `toml:"audnexus_url"`
	GoogleBooksURL        string   `toml:"googlebooks_url"`
	GoogleBooksAPIKey     string   `toml:"googlebooks_api_key"`
	OpenLibraryURL        string   `toml:"openlibrary_url"`
}

// LLM contains chat-completion connection settings for the AI layer.
// Provider selects between "openrouter", "ollama", and "gemini".
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Gemini contains Google Gemini settings used when llm.provider is "gemini".
type Gemini struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
}

// Audio contains settings for the audio identification layer.
type Audio struct {
	WindowSeconds      int    `toml:"window_seconds"`
	WhisperXModel      string `toml:"whisperx_model"`
	CUDAEnabled        bool   `toml:"cuda_enabled"`
	VADMethod          string `toml:"vad_method"`
	Language           string `toml:"language"`
	FingerprintCommand string `toml:"fingerprint_command"`
}

// Watch contains the watch-folder settings.
type Watch struct {
	Enabled           bool   `toml:"enabled"`
	Folder            string `toml:"folder"`
	IntervalSeconds   int    `toml:"interval_seconds"`
	MinFileAgeSeconds int    `toml:"min_file_age_seconds"`
}

// Workflow contains configuration for daemon timing.
type Workflow struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	ErrorRetryInterval  int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls the daemon status and Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
	// Token, when set, is required as a bearer token on /api routes.
	Token string `toml:"token"`
}

// Config encapsulates all configuration values for librarian.
//
// Configuration sections by subsystem:
//   - Paths: library root plus data, log, and scratch directories
//   - Library: file extensions and folders considered during scans
//   - Pipeline: layer switches, confidence threshold and floor
//   - Consensus: agreement bonus, conflict penalty, field weights
//   - Safety: auto-fix and author-change protection
//   - Naming: destination layout and version disambiguation
//   - Providers: metadata lookup endpoints, quotas, circuit breaking
//   - LLM / Gemini: AI layer connection settings
//   - Audio: transcription window and WhisperX options
//   - Watch: watch folder ingestion
//   - Workflow: daemon polling intervals
//   - Logging: log format and level
//   - Metrics: status and Prometheus endpoint
type Config struct {
	Paths     Paths     `toml:"paths"`
	Library   Library   `toml:"library"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Consensus Consensus `toml:"consensus"`
	Safety    Safety    `toml:"safety"`
	Naming    Naming    `toml:"naming"`
	Providers Providers `toml:"providers"`
	LLM       LLM       `toml:"llm"`
	Gemini    Gemini    `toml:"gemini"`
	Audio     Audio     `toml:"audio"`
	Watch     Watch     `toml:"watch"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/librarian/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("librarian.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the store, logs, and audio layer need.
// LibraryDir is never created; a missing library is reported by the scanner instead.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.WorkDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "librarian.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "librarian.lock")
}

// FFprobeBinary returns the ffprobe executable name used for tag inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction and tag embedding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

const redactedSecret = "********"

// Redacted returns a copy of the config with API keys and tokens masked.
func (c *Config) Redacted() Config {
	out := *c
	for _, secret := range []*string{
		&out.Providers.GoogleBooksAPIKey,
		&out.LLM.APIKey,
		&out.Gemini.APIKey,
		&out.Metrics.Token,
	} {
		if *secret != "" {
			*secret = redactedSecret
		}
	}
	return out
}

// LLMConfig contains the resolved AI connection settings.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	Temperature    float64
}

// GetLLM returns the AI settings for the configured provider. Gemini settings
// replace the chat-completion fields when llm.provider is "gemini".
func (c *Config) GetLLM() LLMConfig {
	cfg := LLMConfig{
		Provider:       strings.TrimSpace(c.LLM.Provider),
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
	if cfg.Provider == ProviderGemini {
		cfg.APIKey = strings.TrimSpace(c.Gemini.APIKey)
		cfg.Model = strings.TrimSpace(c.Gemini.Model)
		cfg.BaseURL = ""
		cfg.Temperature = c.Gemini.Temperature
	}
	return cfg
}
