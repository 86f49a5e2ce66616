package pipeline

import (
	"librarian/internal/config"
	"librarian/internal/queue"
)

// Layer is the persisted queue layer.
type Layer = queue.Layer

const (
	LayerUnprocessed = queue.LayerUnprocessed
	LayerAudio       = queue.LayerAudio
	LayerAI          = queue.LayerAI
	LayerAPI         = queue.LayerAPI
	LayerTerminal    = queue.LayerTerminal
)

var layerOrder = []Layer{LayerAudio, LayerAI, LayerAPI}

// Config is the per-batch snapshot of the pipeline settings.
type Config struct {
	LibraryRoot       string
	BatchSize         int
	Threshold         int
	Floor             int
	DeepScan          bool
	Audio             bool
	AI                bool
	API               bool
	APIMatchThreshold float64
	AudioWindow       int
}

// ConfigFromSettings snapshots cfg.
func ConfigFromSettings(cfg *config.Config) Config {
	return Config{
		LibraryRoot:       cfg.Paths.LibraryDir,
		BatchSize:         cfg.Pipeline.BatchSize,
		Threshold:         cfg.Pipeline.ProfileConfidenceThreshold,
		Floor:             cfg.Pipeline.ConfidenceFloor,
		DeepScan:          cfg.Pipeline.DeepScanMode,
		Audio:             cfg.Pipeline.EnableAudioAnalysis,
		AI:                cfg.Pipeline.EnableAIVerification,
		API:               cfg.Pipeline.EnableAPILookups,
		APIMatchThreshold: cfg.Pipeline.APIMatchThreshold,
		AudioWindow:       cfg.Audio.WindowSeconds,
	}
}

// Enabled reports whether l runs under this snapshot.
func (c Config) Enabled(l Layer) bool {
	switch l {
	case LayerAudio:
		return c.Audio
	case LayerAI:
		return c.AI
	case LayerAPI:
		return c.API
	case LayerTerminal:
		return true
	}
	return false
}

// Next returns the first enabled layer after from, or LayerTerminal.
func Next(from Layer, cfg Config) Layer {
	for _, l := range layerOrder {
		if l > from && cfg.Enabled(l) {
			return l
		}
	}
	return LayerTerminal
}
