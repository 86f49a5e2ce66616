package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLibrary()
	c.normalizeConsensus()
	c.normalizeNaming()
	c.normalizeProviders()
	c.normalizeLLM()
	c.normalizeAudio()
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	c.Metrics.Token = strings.TrimSpace(c.Metrics.Token)
	if c.Metrics.Token == "" {
		c.Metrics.Token = strings.TrimSpace(os.Getenv("LIBRARIAN_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLibrary() {
	c.Library.AudioExtensions = normalizeExtensions(c.Library.AudioExtensions)
	c.Library.EbookExtensions = normalizeExtensions(c.Library.EbookExtensions)
	folders := c.Library.IgnoreFolders[:0]
	for _, folder := range c.Library.IgnoreFolders {
		if trimmed := strings.TrimSpace(folder); trimmed != "" {
			folders = append(folders, trimmed)
		}
	}
	c.Library.IgnoreFolders = folders
}

func normalizeExtensions(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

func (c *Config) normalizeConsensus() {
	weights := DefaultFieldWeights()
	for key, value := range c.Consensus.FieldWeights {
		weights[strings.ToLower(strings.TrimSpace(key))] = value
	}
	c.Consensus.FieldWeights = weights
	if len(c.Consensus.SourceWeights) > 0 {
		sources := make(map[string]int, len(c.Consensus.SourceWeights))
		for key, value := range c.Consensus.SourceWeights {
			sources[strings.ToLower(strings.TrimSpace(key))] = value
		}
		c.Consensus.SourceWeights = sources
	}
}

func (c *Config) normalizeNaming() {
	c.Naming.Format = strings.ToLower(strings.TrimSpace(c.Naming.Format))
	if c.Naming.Format == "" {
		c.Naming.Format = NamingAuthorTitle
	}
	c.Naming.CustomTemplate = strings.TrimSpace(c.Naming.CustomTemplate)
	if c.Naming.CustomTemplate == "" {
		c.Naming.CustomTemplate = defaultCustomTemplate
	}
}

func (c *Config) normalizeProviders() {
	enabled := make([]string, 0, len(c.Providers.Enabled))
	seen := make(map[string]struct{}, len(c.Providers.Enabled))
	for _, name := range c.Providers.Enabled {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		enabled = append(enabled, key)
	}
	c.Providers.Enabled = enabled
	c.Providers.AudnexusURL = strings.TrimRight(strings.TrimSpace(c.Providers.AudnexusURL), "/")
	if c.Providers.AudnexusURL == "" {
		c.Providers.AudnexusURL = defaultAudnexusURL
	}
	c.Providers.GoogleBooksURL = strings.TrimSpace(c.Providers.GoogleBooksURL)
	if c.Providers.GoogleBooksURL == "" {
		c.Providers.GoogleBooksURL = defaultGoogleBooksURL
	}
	c.Providers.OpenLibraryURL = strings.TrimSpace(c.Providers.OpenLibraryURL)
	if c.Providers.OpenLibraryURL == "" {
		c.Providers.OpenLibraryURL = defaultOpenLibraryURL
	}
	c.Providers.GoogleBooksAPIKey = strings.TrimSpace(c.Providers.GoogleBooksAPIKey)
	if c.Providers.GoogleBooksAPIKey == "" {
		if value, ok := os.LookupEnv("GOOGLE_BOOKS_API_KEY"); ok {
			c.Providers.GoogleBooksAPIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGemini
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("LIBRARIAN_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.Provider == ProviderOllama && (c.LLM.BaseURL == "" || c.LLM.BaseURL == defaultLLMBaseURL) {
		c.LLM.BaseURL = defaultOllamaBaseURL
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.VADMethod = strings.ToLower(strings.TrimSpace(c.Audio.VADMethod))
	if c.Audio.VADMethod == "" {
		c.Audio.VADMethod = defaultVADMethod
	}
	c.Audio.WhisperXModel = strings.TrimSpace(c.Audio.WhisperXModel)
	if c.Audio.WhisperXModel == "" {
		c.Audio.WhisperXModel = defaultWhisperXModel
	}
	c.Audio.Language = strings.ToLower(strings.TrimSpace(c.Audio.Language))
	c.Audio.FingerprintCommand = strings.TrimSpace(c.Audio.FingerprintCommand)
}

func (c *Config) normalizeWatch() error {
	folder := strings.TrimSpace(c.Watch.Folder)
	if folder == "" {
		c.Watch.Folder = ""
		return nil
	}
	expanded, err := expandPath(folder)
	if err != nil {
		return fmt.Errorf("watch.folder: %w", err)
	}
	c.Watch.Folder = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
