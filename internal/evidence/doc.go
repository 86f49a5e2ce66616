// Package evidence extracts raw identification signals from a book folder.
//
// Extractors are deterministic readers of the local filesystem and of tool
// output: folder names (ParsePath, TriageFolder), sidecar files
// (ReadSidecars), embedded container tags (TagObservations), spoken
// credits in a transcript (ParseCredits) and chromaprint fingerprints.
// Collector ties them together for one folder. Network lookups live in
// package providers.
package evidence
