// Package bandcamp extracts collection data from Bandcamp pages and
// APIs.
//
// The site exposes no stable API contract for fan collections, so data
// comes from two places:
//
//   - the fan's collection page, which embeds a JSON blob in a
//     `<div id="pagedata" data-blob="...">` attribute (first page of
//     items plus the fan id and pagination cursor), and
//   - the paginated fan collection endpoint, advanced with an opaque
//     older_than_token cursor until the server reports completion.
//
// Per-item redownload pages embed the same pagedata blob, carrying the
// available formats; the chosen format's link is then qualified through
// the statdownload endpoint into a directly fetchable URL.
//
// All extraction patterns live in this package so markup changes stay
// contained here.
package bandcamp
