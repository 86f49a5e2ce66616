// Package providers holds the external lookup adapters of the identification
// pipeline: the Audnexus, Google Books and Open Library HTTP clients, the AI
// identifier backed by an LLM completer, and the per-provider protection
// (circuit breaker, rate limiter, result cache) every call goes through.
//
// Adapters never return observations directly. They return CandidateRecord
// values; Accept votes across candidates and discards garbage matches, and
// the pipeline turns the survivors into observations for the consensus
// engine.
package providers
