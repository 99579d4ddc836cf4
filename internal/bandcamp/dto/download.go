package dto

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReleaseTime is a custom time type that handles the date format used
// on download pages, e.g. "07 Apr 2022 00:00:00 GMT".
type ReleaseTime struct {
	time.Time
}

// UnmarshalJSON parses the site's date formats. An empty string yields
// the zero time rather than an error.
func (rt *ReleaseTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "" {
		rt.Time = time.Time{}
		return nil
	}

	formats := []string{
		"02 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 MST",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			rt.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to parse date: %s", s)
}

// DownloadPage is the data-blob payload embedded in a per-item
// redownload page.
type DownloadPage struct {
	DigitalItems []DigitalItem `json:"digital_items"`
}

// DigitalItem describes one downloadable release: its metadata and the
// per-format download options.
type DigitalItem struct {
	// Downloads maps format name ("flac", "mp3-320", ...) to the
	// unqualified download option. Nil when the item offers no
	// downloads.
	Downloads map[string]DownloadOption `json:"downloads"`

	PackageReleaseDate *ReleaseTime `json:"package_release_date"`
	Title              string       `json:"title"`
	Artist             string       `json:"artist"`

	// DownloadType is "a" for albums (zip archives) and "t" for single
	// tracks (one audio file).
	DownloadType string `json:"download_type"`

	ItemType string `json:"item_type"`
	ArtID    int64  `json:"art_id"`
}

// DownloadOption is one format's download entry.
type DownloadOption struct {
	SizeMB       string `json:"size_mb"`
	Description  string `json:"description"`
	EncodingName string `json:"encoding_name"`
	URL          string `json:"url"`
}

// StatDownload is the JSON wrapped in the statdownload response's
// Downloads.statResult(...) call. DownloadURL is the qualified,
// directly fetchable file URL.
type StatDownload struct {
	Result      string `json:"result"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}
