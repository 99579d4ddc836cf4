package audio

import (
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"github.com/cn3rd/bcsync/internal/model"
)

// Tagger writes ID3 tags to single-track mp3 downloads.
//
// Album purchases arrive as zip archives with fully tagged files
// inside, so only bare .mp3 files are eligible. Existing frames are
// preserved except for the ones being set.
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// Eligible reports whether path is a file the tagger can handle.
func (t *Tagger) Eligible(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".mp3")
}

// Tag writes artist, title, year and optional cover art to the mp3 at
// path. artwork must be JPEG bytes or nil.
func (t *Tagger) Tag(path string, d *model.ResolvedDownload, artwork []byte) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	if d.Item.Artist != "" {
		tag.SetArtist(d.Item.Artist)
	}
	if d.Item.Title != "" {
		tag.SetTitle(d.Item.Title)
	}
	if d.ReleaseYear > 0 {
		tag.AddTextFrame("TYER", id3v2.EncodingUTF8, strconv.Itoa(d.ReleaseYear))
	}

	if artwork != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     artwork,
		})
	}

	return tag.Save()
}
