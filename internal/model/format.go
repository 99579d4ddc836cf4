package model

import "fmt"

// Format identifies one of the audio encodings Bandcamp offers for a
// purchased release. The string value matches the key used by the
// download page's format list.
type Format string

const (
	FormatFLAC   Format = "flac"
	FormatALAC   Format = "alac"
	FormatAIFF   Format = "aiff-lossless"
	FormatWAV    Format = "wav"
	FormatMP3320 Format = "mp3-320"
	FormatMP3V0  Format = "mp3-v0"
	FormatAAC    Format = "aac-hi"
	FormatVorbis Format = "vorbis"
)

// Formats lists every known format, best lossless first. This is also
// the default fallback order when the preferred format is unavailable
// for an item.
var Formats = []Format{
	FormatFLAC,
	FormatALAC,
	FormatAIFF,
	FormatWAV,
	FormatMP3320,
	FormatMP3V0,
	FormatAAC,
	FormatVorbis,
}

// ParseFormat converts a user-supplied format name into a Format.
//
// Returns an error naming the valid choices if s is not a known format.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (valid: %v)", s, Formats)
}

// Extension returns the file extension for a single-file download in
// this format, including the dot. Album downloads arrive as zip
// archives regardless of format; see ResolvedDownload.
func (f Format) Extension() string {
	switch f {
	case FormatFLAC:
		return ".flac"
	case FormatALAC, FormatAAC:
		return ".m4a"
	case FormatAIFF:
		return ".aiff"
	case FormatWAV:
		return ".wav"
	case FormatMP3320, FormatMP3V0:
		return ".mp3"
	case FormatVorbis:
		return ".ogg"
	default:
		return ".bin"
	}
}
