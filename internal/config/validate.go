package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateConsensus(); err != nil {
		return err
	}
	if err := c.validateSafety(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.BatchSize <= 0 {
		return errors.New("pipeline.batch_size must be positive")
	}
	if p.ProfileConfidenceThreshold < 0 || p.ProfileConfidenceThreshold > 100 {
		return errors.New("pipeline.profile_confidence_threshold must be between 0 and 100")
	}
	if p.ConfidenceFloor < 0 || p.ConfidenceFloor > 100 {
		return errors.New("pipeline.confidence_floor must be between 0 and 100")
	}
	if p.ConfidenceFloor > p.ProfileConfidenceThreshold {
		return errors.New("pipeline.confidence_floor must not exceed pipeline.profile_confidence_threshold")
	}
	if p.APIMatchThreshold <= 0 || p.APIMatchThreshold > 1 {
		return errors.New("pipeline.api_match_threshold must be between 0 and 1")
	}
	if p.MaxRetries < 0 {
		return errors.New("pipeline.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateConsensus() error {
	cs := c.Consensus
	if cs.AgreementSimilarity <= 0 || cs.AgreementSimilarity > 1 {
		return errors.New("consensus.agreement_similarity must be between 0 and 1")
	}
	for key, value := range map[string]int{
		"consensus.agreement_bonus_two":   cs.AgreementBonusTwo,
		"consensus.agreement_bonus_three": cs.AgreementBonusThree,
		"consensus.agreement_bonus_many":  cs.AgreementBonusMany,
		"consensus.conflict_penalty":      cs.ConflictPenalty,
		"consensus.low_confidence":        cs.LowConfidence,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", key)
		}
	}
	total := 0
	for field, weight := range cs.FieldWeights {
		if weight < 0 {
			return fmt.Errorf("consensus.field_weights.%s must be >= 0", field)
		}
		total += weight
	}
	if total == 0 {
		return errors.New("consensus.field_weights must include at least one positive weight")
	}
	for source, weight := range cs.SourceWeights {
		if weight < 0 || weight > 100 {
			return fmt.Errorf("consensus.source_weights.%s must be between 0 and 100", source)
		}
	}
	return nil
}

func (c *Config) validateSafety() error {
	if c.Safety.MinDepth < 1 {
		return errors.New("safety.min_depth must be at least 1")
	}
	return nil
}

func (c *Config) validateNaming() error {
	switch c.Naming.Format {
	case NamingAuthorTitle, NamingAuthorDashTitle:
	case NamingCustom:
		if !strings.Contains(c.Naming.CustomTemplate, "{title}") {
			return errors.New("naming.custom_template must include {title}")
		}
	default:
		return fmt.Errorf("naming.format: unsupported value %q", c.Naming.Format)
	}
	if c.Naming.VersionSimilarity <= 0 || c.Naming.VersionSimilarity > 1 {
		return errors.New("naming.version_similarity must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if err := ensurePositiveMap(map[string]int{
		"providers.max_requests_per_hour":   c.Providers.MaxRequestsPerHour,
		"providers.request_timeout_seconds": c.Providers.RequestTimeoutSeconds,
		"providers.failure_threshold":       c.Providers.FailureThreshold,
		"providers.cooldown_seconds":        c.Providers.CooldownSeconds,
	}); err != nil {
		return err
	}
	if c.Providers.CacheTTLSeconds < 0 {
		return errors.New("providers.cache_ttl_seconds must be >= 0")
	}
	for _, name := range c.Providers.Enabled {
		switch name {
		case LookupAudnexus, LookupGoogleBooks, LookupOpenLibrary:
		default:
			return fmt.Errorf("providers.enabled: unknown provider %q", name)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.LLM.Provider)
	}
	if !c.Pipeline.EnableAIVerification {
		return nil
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return errors.New("gemini.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if !c.Watch.Enabled {
		return nil
	}
	if c.Watch.Folder == "" {
		return errors.New("watch.folder must be set when watch.enabled is true")
	}
	if c.Watch.IntervalSeconds <= 0 {
		return errors.New("watch.interval_seconds must be positive")
	}
	if c.Watch.MinFileAgeSeconds < 0 {
		return errors.New("watch.min_file_age_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval_seconds": c.Workflow.PollIntervalSeconds,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
		"audio.window_seconds":           c.Audio.WindowSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
