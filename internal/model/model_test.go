package model

import (
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "flac", input: "flac", want: FormatFLAC},
		{name: "mp3 320", input: "mp3-320", want: FormatMP3320},
		{name: "aiff", input: "aiff-lossless", want: FormatAIFF},
		{name: "unknown", input: "opus", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong case", input: "FLAC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormat_Extension(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatFLAC, ".flac"},
		{FormatALAC, ".m4a"},
		{FormatAAC, ".m4a"},
		{FormatAIFF, ".aiff"},
		{FormatWAV, ".wav"},
		{FormatMP3320, ".mp3"},
		{FormatMP3V0, ".mp3"},
		{FormatVorbis, ".ogg"},
	}

	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("%s.Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "clean name unchanged", input: "Artist - Album", want: "Artist - Album"},
		{name: "invalid chars replaced", input: `What? <A/B>: "C"`, want: "What_ _A_B__ _C_"},
		{name: "diacritics folded", input: "Björk - Médúlla", want: "Bjork - Medulla"},
		{name: "trailing dots stripped", input: "Vol. 2...", want: "Vol. 2"},
		{name: "whitespace collapsed", input: "  two   words \t here ", want: "two words here"},
		{name: "control chars replaced", input: "a\x00b\x1fc", want: "a_b_c"},
		{name: "empty stays empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolvedDownload_BaseName(t *testing.T) {
	d := &ResolvedDownload{
		Item:   Item{ID: "p123", Title: "Album: One", Artist: "Some/Artist"},
		Format: FormatFLAC,
	}

	tests := []struct {
		name string
		cfg  NameConfig
		want string
	}{
		{name: "default template", cfg: NameConfig{}, want: "Some_Artist - Album_ One"},
		{name: "custom template", cfg: NameConfig{Template: "{id} {format}"}, want: "p123 flac"},
		{name: "template sanitized whole", cfg: NameConfig{Template: "{title}?"}, want: "Album_ One_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.BaseName(tt.cfg); got != tt.want {
				t.Errorf("BaseName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvedDownload_Extension(t *testing.T) {
	album := &ResolvedDownload{Format: FormatFLAC}
	if got := album.Extension(); got != ".zip" {
		t.Errorf("album Extension() = %q, want .zip", got)
	}

	track := &ResolvedDownload{Format: FormatMP3320, SingleFile: true}
	if got := track.Extension(); got != ".mp3" {
		t.Errorf("track Extension() = %q, want .mp3", got)
	}
}

func TestAssignFileNames(t *testing.T) {
	newDownload := func(id, title, artist string) *ResolvedDownload {
		return &ResolvedDownload{
			Item:   Item{ID: id, Title: title, Artist: artist},
			Format: FormatFLAC,
		}
	}

	t.Run("no collisions", func(t *testing.T) {
		downloads := []*ResolvedDownload{
			newDownload("p1", "First", "A"),
			newDownload("p2", "Second", "A"),
		}
		AssignFileNames(downloads, NameConfig{})

		if downloads[0].FileName != "A - First.zip" {
			t.Errorf("FileName = %q, want %q", downloads[0].FileName, "A - First.zip")
		}
		if downloads[1].FileName != "A - Second.zip" {
			t.Errorf("FileName = %q, want %q", downloads[1].FileName, "A - Second.zip")
		}
	})

	t.Run("colliding names all get id suffix", func(t *testing.T) {
		downloads := []*ResolvedDownload{
			newDownload("p1", "Same", "A"),
			newDownload("p2", "Same", "A"),
			newDownload("p3", "Other", "A"),
		}
		AssignFileNames(downloads, NameConfig{})

		if downloads[0].FileName != "A - Same [p1].zip" {
			t.Errorf("FileName = %q, want %q", downloads[0].FileName, "A - Same [p1].zip")
		}
		if downloads[1].FileName != "A - Same [p2].zip" {
			t.Errorf("FileName = %q, want %q", downloads[1].FileName, "A - Same [p2].zip")
		}
		if downloads[2].FileName != "A - Other.zip" {
			t.Errorf("non-colliding FileName = %q, want %q", downloads[2].FileName, "A - Other.zip")
		}
	})

	t.Run("order independent", func(t *testing.T) {
		forward := []*ResolvedDownload{
			newDownload("p1", "Same", "A"),
			newDownload("p2", "Same", "A"),
		}
		reverse := []*ResolvedDownload{
			newDownload("p2", "Same", "A"),
			newDownload("p1", "Same", "A"),
		}
		AssignFileNames(forward, NameConfig{})
		AssignFileNames(reverse, NameConfig{})

		if forward[0].FileName != reverse[1].FileName {
			t.Errorf("p1 named %q forward but %q reversed", forward[0].FileName, reverse[1].FileName)
		}
		if forward[1].FileName != reverse[0].FileName {
			t.Errorf("p2 named %q forward but %q reversed", forward[1].FileName, reverse[0].FileName)
		}
	})

	t.Run("same base name different extensions do not collide", func(t *testing.T) {
		album := newDownload("p1", "Same", "A")
		track := newDownload("p2", "Same", "A")
		track.SingleFile = true
		downloads := []*ResolvedDownload{album, track}
		AssignFileNames(downloads, NameConfig{})

		if strings.Contains(album.FileName, "[p1]") {
			t.Errorf("album FileName %q should not carry the id suffix", album.FileName)
		}
		if strings.Contains(track.FileName, "[p2]") {
			t.Errorf("track FileName %q should not carry the id suffix", track.FileName)
		}
	})

	t.Run("empty name falls back to id", func(t *testing.T) {
		downloads := []*ResolvedDownload{newDownload("p9", "...", "")}
		AssignFileNames(downloads, NameConfig{Template: "{title}"})

		if downloads[0].FileName != "p9.zip" {
			t.Errorf("FileName = %q, want %q", downloads[0].FileName, "p9.zip")
		}
	})
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeSuccess, "success"},
		{OutcomeSkipped, "skipped"},
		{OutcomeFailed, "failed"},
		{Outcome(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}
