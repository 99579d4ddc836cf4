package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Item is one purchased release discovered while enumerating the
// collection. Title and Artist may be empty at this stage; the download
// page filled in during resolution is authoritative for both.
//
// ID is the sale item id (e.g. "p201234567") and is the identity key
// used for deduplication and for the download cache.
type Item struct {
	// ID is the sale item id, unique per purchase.
	ID string

	// Title is the release title, if known at enumeration time.
	Title string

	// Artist is the release artist, if known at enumeration time.
	Artist string

	// RedirectURL is the per-item redownload page that must be fetched
	// and parsed to obtain the actual file URL.
	RedirectURL string
}

// ResolvedDownload is a fully determined, directly fetchable file
// reference for one item. Produced by the resolver, consumed by the
// download engine.
type ResolvedDownload struct {
	// Item is the originating collection item, with Title and Artist
	// filled in from the download page.
	Item Item

	// Format is the encoding that was actually selected, which may be a
	// fallback when the preferred format was unavailable.
	Format Format

	// FileURL is the qualified download URL. No further redirect
	// negotiation is required to fetch it.
	FileURL string

	// FileName is the sanitized local file name (no directory).
	// Assigned by AssignFileNames once the full resolved set is known.
	FileName string

	// SingleFile is true for single-track purchases, which arrive as
	// one audio file. Album purchases arrive as zip archives.
	SingleFile bool

	// ArtID is the cover art identifier, zero when no art is available.
	ArtID int64

	// ReleaseYear is the release year, zero when unknown.
	ReleaseYear int
}

// Extension returns the file extension for this download, including
// the dot.
func (d *ResolvedDownload) Extension() string {
	if d.SingleFile {
		return d.Format.Extension()
	}
	return ".zip"
}

// Outcome classifies the terminal state of one item's download.
type Outcome int

const (
	// OutcomeSuccess means the file was downloaded and renamed into place.
	OutcomeSuccess Outcome = iota

	// OutcomeSkipped means no transfer was needed (already on disk, in
	// the download cache, or excluded by a dry run).
	OutcomeSkipped

	// OutcomeFailed means the item failed after exhausting retries, or
	// failed to resolve. Sibling items are unaffected.
	OutcomeFailed
)

// String returns a short lowercase label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal record for one item, aggregated into the run
// summary.
type Result struct {
	// ItemID identifies the item this result belongs to.
	ItemID string

	// Title and Artist are carried for reporting; either may be empty
	// when the item failed before resolution.
	Title  string
	Artist string

	// Outcome is the terminal state.
	Outcome Outcome

	// Path is the local file path, set on success.
	Path string

	// Reason explains a skip (e.g. "already exists", "cached").
	Reason string

	// Err is the item-scoped failure, set when Outcome is OutcomeFailed.
	Err error
}

// NameConfig controls local file naming.
type NameConfig struct {
	// Template is the file name template without extension.
	// Supported placeholders: {artist}, {title}, {id}, {format}.
	Template string
}

// DefaultNameTemplate is the file name template used when none is
// configured.
const DefaultNameTemplate = "{artist} - {title}"

// BaseName computes the sanitized file name for a download, without
// collision handling and without extension.
func (d *ResolvedDownload) BaseName(cfg NameConfig) string {
	tmpl := cfg.Template
	if tmpl == "" {
		tmpl = DefaultNameTemplate
	}
	name := tmpl
	name = strings.ReplaceAll(name, "{artist}", d.Item.Artist)
	name = strings.ReplaceAll(name, "{title}", d.Item.Title)
	name = strings.ReplaceAll(name, "{id}", d.Item.ID)
	name = strings.ReplaceAll(name, "{format}", string(d.Format))
	name = SanitizeFileName(name)
	if name == "" {
		name = SanitizeFileName(d.Item.ID)
	}
	return name
}

// AssignFileNames fills in FileName for every download in the set.
//
// When two or more items would produce the same base name, every member
// of the colliding group gets the item id appended. The rule depends
// only on the set of colliding names, not on slice order, so repeated
// runs over the same collection produce identical names.
func AssignFileNames(downloads []*ResolvedDownload, cfg NameConfig) {
	byName := make(map[string]int, len(downloads))
	for _, d := range downloads {
		byName[d.BaseName(cfg)+d.Extension()]++
	}

	for _, d := range downloads {
		base := d.BaseName(cfg)
		if byName[base+d.Extension()] > 1 {
			base = fmt.Sprintf("%s [%s]", base, SanitizeFileName(d.Item.ID))
		}
		d.FileName = base + d.Extension()
	}
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	multiSpace       = regexp.MustCompile(`\s+`)
)

// foldDiacritics strips combining marks after NFD decomposition, so
// "Björk" becomes "Bjork". Characters that do not decompose are kept
// as-is.
var foldDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// SanitizeFileName makes a string safe to use as a single path
// component on any supported filesystem.
//
// Diacritics are folded to their base characters, invalid characters
// (<>:"/\|?* and control chars) are replaced with underscores, trailing
// dots and whitespace are removed, and runs of whitespace collapse to a
// single space.
func SanitizeFileName(name string) string {
	if folded, _, err := transform.String(foldDiacritics, name); err == nil {
		name = folded
	}
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
