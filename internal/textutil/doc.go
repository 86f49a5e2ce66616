// Package textutil provides the string handling shared by evidence
// extraction, consensus and path building.
//
// The primary use cases are:
//   - Normalizing names and titles for equality (accent folding, initials)
//   - Scoring similarity between names (edit distance) and titles (word overlap)
//   - Mention coverage for checking whether a transcript names a known title
//   - Sanitizing path segments for safe filesystem use
package textutil
