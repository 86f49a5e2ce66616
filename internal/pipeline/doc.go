// Package pipeline drives queued books through the identification layers.
//
// Each queued book sits at a layer: unprocessed, audio, ai, api or the
// folder fallback. One ProcessBatch call runs one layer step per dequeued
// book, merges the new observations through the consensus engine and
// persists the result in a single store transaction. A book finishes as
// verified, needs_fix or needs_attention; the transition table always ends
// at the folder fallback so no book can be left at a layer that will never
// run.
package pipeline
