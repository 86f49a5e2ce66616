// Package ffprobe reads audiobook tags through ffprobe's JSON output.
//
// Result.Tags merges container and audio-stream tags (artist, album,
// composer, series and so on) for the evidence extractors.
package ffprobe
