// Package audio tags downloaded mp3 files with ID3v2 metadata.
// Optional: the pipeline only invokes it for single-track mp3
// downloads when tagging is enabled.
package audio
