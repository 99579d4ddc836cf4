package bandcamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/cn3rd/bcsync/internal/bandcamp/dto"
	"github.com/cn3rd/bcsync/internal/model"
)

var (
	// ErrNoDigitalItems is returned when a redownload page carries no
	// digital items (e.g. a revoked or physical-only purchase).
	ErrNoDigitalItems = errors.New("no digital items on download page")

	// ErrNoDownloads is returned when an item offers no download
	// formats at all.
	ErrNoDownloads = errors.New("no downloads available")

	// ErrNoQualifiedURL is returned when the statdownload response
	// carries no usable download URL.
	ErrNoQualifiedURL = errors.New("no qualified download URL in stat response")
)

// FormatUnavailableError reports that neither the preferred format nor
// any fallback is offered for an item.
type FormatUnavailableError struct {
	Preferred model.Format
	Available []string
}

func (e *FormatUnavailableError) Error() string {
	return fmt.Sprintf("format %s unavailable (offered: %s)", e.Preferred, strings.Join(e.Available, ", "))
}

// FormatPrefs is the requested format plus the ordered fallback list
// tried when an item does not offer it.
type FormatPrefs struct {
	Preferred model.Format
	Fallback  []model.Format
}

// Choose picks the download option for the preferred format, or the
// first fallback the item offers.
func (p FormatPrefs) Choose(downloads map[string]dto.DownloadOption) (model.Format, dto.DownloadOption, error) {
	if len(downloads) == 0 {
		return "", dto.DownloadOption{}, ErrNoDownloads
	}

	if opt, ok := downloads[string(p.Preferred)]; ok {
		return p.Preferred, opt, nil
	}
	for _, f := range p.Fallback {
		if f == p.Preferred {
			continue
		}
		if opt, ok := downloads[string(f)]; ok {
			return f, opt, nil
		}
	}

	available := make([]string, 0, len(downloads))
	for name := range downloads {
		available = append(available, name)
	}
	sort.Strings(available)
	return "", dto.DownloadOption{}, &FormatUnavailableError{Preferred: p.Preferred, Available: available}
}

// statResultRe matches the statdownload response body, a small JS
// snippet calling Downloads.statResult with a JSON argument.
var statResultRe = regexp.MustCompile(`(?s)if\s*\(\s*window\.Downloads\s*\)\s*\{\s*Downloads\.statResult\s*\(\s*(.*)\s*\)\s*\};`)

// ResolveItem turns a collection item into a directly fetchable
// download: it fetches the item's redownload page, picks a format and
// qualifies the download link. All failures are item-scoped.
func (c *Client) ResolveItem(ctx context.Context, item model.Item, prefs FormatPrefs) (*model.ResolvedDownload, error) {
	html, err := c.fetcher.Text(ctx, item.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, err)
	}

	blob, err := extractPageData(html)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, err)
	}

	var page dto.DownloadPage
	if err := json.Unmarshal([]byte(blob), &page); err != nil {
		return nil, fmt.Errorf("item %s: parse download page: %w", item.ID, err)
	}
	if len(page.DigitalItems) == 0 {
		return nil, fmt.Errorf("item %s: %w", item.ID, ErrNoDigitalItems)
	}
	digital := page.DigitalItems[0]

	// The download page is authoritative for title and artist; stubs
	// from API pages arrive with both unknown.
	if digital.Title != "" {
		item.Title = digital.Title
	}
	if digital.Artist != "" {
		item.Artist = digital.Artist
	}

	format, option, err := prefs.Choose(digital.Downloads)
	if err != nil {
		return nil, fmt.Errorf("item %s (%s - %s): %w", item.ID, item.Artist, item.Title, err)
	}

	fileURL, err := c.qualifyDownloadURL(ctx, option.URL)
	if err != nil {
		return nil, fmt.Errorf("item %s (%s - %s): %w", item.ID, item.Artist, item.Title, err)
	}

	resolved := &model.ResolvedDownload{
		Item:       item,
		Format:     format,
		FileURL:    fileURL,
		SingleFile: digital.DownloadType == "t",
		ArtID:      digital.ArtID,
	}
	if digital.PackageReleaseDate != nil && !digital.PackageReleaseDate.IsZero() {
		resolved.ReleaseYear = digital.PackageReleaseDate.Year()
	}

	c.log.Debug().
		Str("item", item.ID).
		Str("format", string(format)).
		Str("title", item.Title).
		Msg("download link resolved")

	return resolved, nil
}

// qualifyDownloadURL exchanges an unqualified /download/ link for the
// final file URL via the /statdownload/ endpoint. The cache-busting
// query parameters mirror what the web player sends.
func (c *Client) qualifyDownloadURL(ctx context.Context, downloadURL string) (string, error) {
	statURL := strings.Replace(downloadURL, "/download/", "/statdownload/", 1)
	if u, err := url.Parse(statURL); err == nil && u.Scheme == "http" && strings.HasSuffix(u.Hostname(), "bandcamp.com") {
		u.Scheme = "https"
		statURL = u.String()
	}
	statURL += fmt.Sprintf("&.vrs=1&.rand=%d", rand.Int32())

	body, err := c.fetcher.Text(ctx, statURL)
	if err != nil {
		return "", err
	}

	m := statResultRe.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("statdownload response: %w", ErrNoQualifiedURL)
	}

	var stat dto.StatDownload
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &stat); err != nil {
		return "", fmt.Errorf("parse statdownload response: %w", err)
	}
	if stat.DownloadURL == "" {
		return "", ErrNoQualifiedURL
	}
	return stat.DownloadURL, nil
}

// ArtworkURL returns the cover art URL for an art id.
func ArtworkURL(artID int64) string {
	return fmt.Sprintf("https://f4.bcbits.com/img/a%010d_0.jpg", artID)
}
