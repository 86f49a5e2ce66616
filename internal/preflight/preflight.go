package preflight

import (
	"context"

	"librarian/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Fatal marks checks the daemon cannot run without.
	Fatal bool
}

// RunAll executes all applicable preflight checks for the given config.
// Remote checks only run when the corresponding layer is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		fatal(CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir)),
		fatal(CheckDirectoryAccess("Data directory", cfg.Paths.DataDir)),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	if cfg.Watch.Enabled {
		results = append(results, CheckDirectoryAccess("Watch folder", cfg.Watch.Folder))
	}

	if cfg.Pipeline.EnableAIVerification {
		llmCfg := cfg.GetLLM()
		if llmCfg.Provider == config.ProviderGemini {
			results = append(results, CheckGemini(llmCfg))
		} else {
			results = append(results, CheckLLM(ctx, "AI layer LLM", llmCfg))
		}
	}

	if cfg.Pipeline.EnableAPILookups {
		for _, name := range cfg.Providers.Enabled {
			if url := endpointFor(cfg, name); url != "" {
				results = append(results, CheckEndpoint(ctx, name, url))
			}
		}
	}
	return results
}

// Failed returns the fatal checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Fatal && !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func fatal(r Result) Result {
	r.Fatal = true
	return r
}

func endpointFor(cfg *config.Config, name string) string {
	switch name {
	case config.LookupAudnexus:
		return cfg.Providers.AudnexusURL
	case config.LookupGoogleBooks:
		return cfg.Providers.GoogleBooksURL
	case config.LookupOpenLibrary:
		return cfg.Providers.OpenLibraryURL
	}
	return ""
}
