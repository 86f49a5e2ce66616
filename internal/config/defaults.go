package config

// AI provider names accepted by llm.provider.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
)

// Naming formats accepted by naming.format.
const (
	NamingAuthorTitle     = "author/title"
	NamingAuthorDashTitle = "author - title"
	NamingCustom          = "custom"
)

// Metadata lookup providers accepted by providers.enabled.
const (
	LookupAudnexus    = "audnexus"
	LookupGoogleBooks = "googlebooks"
	LookupOpenLibrary = "openlibrary"
)

const (
	defaultLibraryDir                 = "~/audiobooks"
	defaultDataDir                    = "~/.local/share/librarian"
	defaultLogDir                     = "~/.local/share/librarian/logs"
	defaultWorkDir                    = "~/.cache/librarian/work"
	defaultBatchSize                  = 10
	defaultProfileConfidenceThreshold = 85
	defaultConfidenceFloor            = 40
	defaultAPIMatchThreshold          = 0.6
	defaultMaxRetries                 = 3
	defaultAgreementSimilarity        = 0.85
	defaultAgreementBonusTwo          = 10
	defaultAgreementBonusThree        = 20
	defaultAgreementBonusMany         = 25
	defaultConflictPenalty            = 15
	defaultLowConfidence              = 50
	defaultMinDepth                   = 2
	defaultCustomTemplate             = "{author}/{title}"
	defaultVersionSimilarity          = 0.70
	defaultMaxRequestsPerHour         = 200
	defaultRequestTimeoutSeconds      = 15
	defaultCacheTTLSeconds            = 3600
	defaultFailureThreshold           = 3
	defaultCooldownSeconds            = 300
	defaultAudnexusURL                = "https://api.audnex.us"
	defaultGoogleBooksURL             = "https://www.googleapis.com/books/v1/volumes"
	defaultOpenLibraryURL             = "https://openlibrary.org/search.json"
	defaultLLMBaseURL                 = "https://openrouter.ai/api/v1/chat/completions"
	defaultOllamaBaseURL              = "http://localhost:11434/v1/chat/completions"
	defaultLLMModel                   = "google/gemini-2.5-flash"
	defaultLLMReferer                 = "https://github.com/librarian/librarian"
	defaultLLMTitle                   = "Librarian Book Identification"
	defaultLLMTimeoutSeconds          = 60
	defaultGeminiModel                = "gemma-3-27b-it"
	defaultAudioWindowSeconds         = 90
	defaultWhisperXModel              = "large-v3-turbo"
	defaultVADMethod                  = "silero"
	defaultAudioLanguage              = "en"
	defaultFingerprintCommand         = "fpcalc"
	defaultWatchIntervalSeconds       = 60
	defaultWatchMinFileAgeSeconds     = 30
	defaultPollIntervalSeconds        = 30
	defaultErrorRetryInterval         = 60
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultMetricsBind                = "127.0.0.1:7491"
)

// DefaultFieldWeights returns the per-field weights used for overall profile confidence.
func DefaultFieldWeights() map[string]int {
	return map[string]int{
		"author":     30,
		"title":      30,
		"narrator":   15,
		"series":     10,
		"series_num": 10,
		"language":   5,
		"year":       3,
		"edition":    1,
		"variant":    1,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			WorkDir:    defaultWorkDir,
		},
		Library: Library{
			AudioExtensions: []string{".mp3", ".m4a", ".m4b", ".flac", ".ogg", ".opus", ".aac", ".wma"},
			EbookExtensions: []string{".epub", ".pdf", ".mobi", ".azw3"},
			IgnoreFolders:   []string{"@eaDir", "#recycle", ".AppleDouble", "__MACOSX", "$RECYCLE.BIN"},
		},
		Pipeline: Pipeline{
			BatchSize:                  defaultBatchSize,
			ProfileConfidenceThreshold: defaultProfileConfidenceThreshold,
			ConfidenceFloor:            defaultConfidenceFloor,
			EnableAIVerification:       true,
			EnableAPILookups:           true,
			APIMatchThreshold:          defaultAPIMatchThreshold,
			MaxRetries:                 defaultMaxRetries,
		},
		Consensus: Consensus{
			AgreementSimilarity: defaultAgreementSimilarity,
			AgreementBonusTwo:   defaultAgreementBonusTwo,
			AgreementBonusThree: defaultAgreementBonusThree,
			AgreementBonusMany:  defaultAgreementBonusMany,
			ConflictPenalty:     defaultConflictPenalty,
			LowConfidence:       defaultLowConfidence,
			FieldWeights:        DefaultFieldWeights(),
		},
		Safety: Safety{
			ProtectAuthorChanges: true,
			MinDepth:             defaultMinDepth,
		},
		Naming: Naming{
			Format:            NamingAuthorTitle,
			CustomTemplate:    defaultCustomTemplate,
			VersionSimilarity: defaultVersionSimilarity,
		},
		Providers: Providers{
			Enabled:               []string{LookupAudnexus, LookupGoogleBooks, LookupOpenLibrary},
			MaxRequestsPerHour:    defaultMaxRequestsPerHour,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			CacheTTLSeconds:       defaultCacheTTLSeconds,
			FailureThreshold:      defaultFailureThreshold,
			CooldownSeconds:       defaultCooldownSeconds,
			AudnexusURL:           defaultAudnexusURL,
			GoogleBooksURL:        defaultGoogleBooksURL,
			OpenLibraryURL:        defaultOpenLibraryURL,
		},
		LLM: LLM{
			Provider:       ProviderGemini,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Gemini: Gemini{
			Model: defaultGeminiModel,
		},
		Audio: Audio{
			WindowSeconds:      defaultAudioWindowSeconds,
			WhisperXModel:      defaultWhisperXModel,
			VADMethod:          defaultVADMethod,
			Language:           defaultAudioLanguage,
			FingerprintCommand: defaultFingerprintCommand,
		},
		Watch: Watch{
			IntervalSeconds:   defaultWatchIntervalSeconds,
			MinFileAgeSeconds: defaultWatchMinFileAgeSeconds,
		},
		Workflow: Workflow{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			ErrorRetryInterval:  defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}
