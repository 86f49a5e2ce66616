// Package whisperx runs WhisperX (through uvx) over the opening window of an
// audiobook so the audio identification layer can read the spoken credits.
//
// Transcribe cuts a mono 16 kHz WAV window with ffmpeg, transcribes it and
// decodes the JSON transcript WhisperX writes next to it.
package whisperx
