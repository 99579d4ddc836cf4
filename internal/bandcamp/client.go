package bandcamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/cn3rd/bcsync/internal/bandcamp/dto"
	"github.com/cn3rd/bcsync/internal/fetch"
	"github.com/cn3rd/bcsync/internal/model"
	"github.com/cn3rd/bcsync/internal/session"
)

// ErrPageDataNotFound is returned when a page is missing the embedded
// pagedata blob, typically because the markup changed or the fetched
// page is not the expected one.
var ErrPageDataNotFound = errors.New("pagedata blob not found in page")

// Scope selects which part of the collection to enumerate.
type Scope string

const (
	// ScopeCollection is the fan's visible collection.
	ScopeCollection Scope = "collection_items"

	// ScopeHidden is the fan's hidden items.
	ScopeHidden Scope = "hidden_items"
)

// Client talks to the collection pages and APIs through an
// authenticated Fetcher. It owns all markup extraction, so matching
// patterns can change without touching the pipeline.
type Client struct {
	fetcher *fetch.Fetcher
	base    string
	log     zerolog.Logger
}

// NewClient creates a collection client.
func NewClient(fetcher *fetch.Fetcher, logger zerolog.Logger) *Client {
	return &Client{
		fetcher: fetcher,
		base:    session.BaseURL,
		log:     logger,
	}
}

// FanPage fetches the fan's collection page and decodes the embedded
// pagedata blob.
func (c *Client) FanPage(ctx context.Context, username string) (*dto.FanPageData, error) {
	pageURL := c.base + "/" + url.PathEscape(username)
	html, err := c.fetcher.Text(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	blob, err := extractPageData(html)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pageURL, err)
	}

	var data dto.FanPageData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, fmt.Errorf("parse fan page data: %w", err)
	}
	if data.FanData.FanID == 0 {
		return nil, fmt.Errorf("fan page for %q has no fan id (wrong username?)", username)
	}
	return &data, nil
}

// CollectionItems fetches one page of the paginated collection API.
func (c *Client) CollectionItems(ctx context.Context, fanID int64, token string, scope Scope) (*dto.CollectionItemsPage, error) {
	payload, err := json.Marshal(map[string]any{
		"fan_id":           fanID,
		"older_than_token": token,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.fetcher.PostJSON(ctx, c.base+"/api/fancollection/1/"+string(scope), payload)
	if err != nil {
		return nil, err
	}

	var page dto.CollectionItemsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse %s page: %w", scope, err)
	}
	return &page, nil
}

// Releases enumerates the fan's purchased releases, paginating each
// scope until exhaustion. Items are deduplicated by sale id, first
// seen wins, and returned in a deterministic order.
//
// Non-auth pagination failures inside a scope are logged and the items
// collected so far are kept. Authentication failures are fatal for the
// run and are returned immediately, as are fan-page retrieval errors.
func (c *Client) Releases(ctx context.Context, username string, includeHidden bool) ([]model.Item, error) {
	fan, err := c.FanPage(ctx, username)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	items, err := c.scopeItems(ctx, fan.FanData.FanID, fan.CollectionData, fan.ItemCache.Collection, ScopeCollection, seen)
	if err != nil {
		return nil, err
	}
	if includeHidden {
		hidden, err := c.scopeItems(ctx, fan.FanData.FanID, fan.HiddenData, fan.ItemCache.Hidden, ScopeHidden, seen)
		if err != nil {
			return nil, err
		}
		items = append(items, hidden...)
	}

	if err := ctx.Err(); err != nil {
		return items, err
	}

	c.log.Info().Int("items", len(items)).Str("fan", username).Msg("collection enumerated")
	return items, nil
}

// scopeItems walks one collection scope: the page embedded in the fan
// page first, then the API pages, advancing the cursor until the server
// reports no more items, a page yields nothing new, or the cursor
// repeats. Only an authentication failure is returned as an error; it
// is fatal for the run even when everything collected so far would be
// skipped anyway.
func (c *Client) scopeItems(ctx context.Context, fanID int64, first dto.CollectionData, cache map[string]dto.CachedItem, scope Scope, seen map[string]struct{}) ([]model.Item, error) {
	items := appendStubs(nil, first.RedownloadURLs, cache, seen)

	token := ""
	if first.LastToken != nil {
		token = *first.LastToken
	}
	if token == "" {
		token = firstToken(cache)
	}

	more := first.ItemCount == nil || int64(len(first.RedownloadURLs)) < *first.ItemCount
	for more {
		if ctx.Err() != nil {
			return items, nil
		}

		page, err := c.CollectionItems(ctx, fanID, token, scope)
		if err != nil {
			if errors.Is(err, session.ErrNotAuthenticated) {
				c.log.Error().Str("scope", string(scope)).Err(err).Msg("pagination aborted")
				return items, err
			}
			c.log.Warn().Str("scope", string(scope)).Err(err).Msg("page fetch failed, keeping items collected so far")
			return items, nil
		}

		before := len(items)
		items = appendStubs(items, page.RedownloadURLs, cache, seen)

		if page.LastToken == token {
			c.log.Warn().Str("scope", string(scope)).Str("token", token).Msg("pagination cursor repeated, stopping")
			return items, nil
		}
		token = page.LastToken
		more = page.MoreAvailable

		if len(items) == before {
			if more {
				c.log.Warn().Str("scope", string(scope)).Msg("page yielded no new items, stopping")
			}
			return items, nil
		}
	}

	return items, nil
}

// appendStubs converts one page's redownload URL map into item stubs,
// in sorted id order for determinism, dropping ids already seen.
// Title and artist come from the item cache when present; items beyond
// the first page stay unknown until resolution.
func appendStubs(items []model.Item, urls map[string]string, cache map[string]dto.CachedItem, seen map[string]struct{}) []model.Item {
	ids := make([]string, 0, len(urls))
	for id := range urls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		item := model.Item{ID: id, RedirectURL: urls[id]}
		if cached, ok := cache[id]; ok {
			item.Title = cached.ItemTitle
			item.Artist = cached.BandName
		}
		items = append(items, item)
	}
	return items
}

// firstToken builds a pagination token in the form
// "<unix>:<item_id>:<item_type>::", seeded from the cached item with
// the smallest sale id so repeated runs build the same cursor. With an
// empty cache the id and type are left blank, which the API accepts as
// "from the top".
func firstToken(cache map[string]dto.CachedItem) string {
	now := time.Now().Unix()

	ids := make([]string, 0, len(cache))
	for id := range cache {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Sprintf("%d::::", now)
	}
	sort.Strings(ids)

	item := cache[ids[0]]
	return fmt.Sprintf("%d:%d:%s::", now, item.ItemID, item.ItemType)
}

// extractPageData pulls the data-blob attribute from the pagedata div.
// The HTML parser unescapes attribute values, so the returned string is
// plain JSON.
func extractPageData(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	blob, ok := doc.Find("div#pagedata").Attr("data-blob")
	if !ok || blob == "" {
		return "", ErrPageDataNotFound
	}
	return blob, nil
}
