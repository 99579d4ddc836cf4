// Package dto holds the JSON shapes embedded in Bandcamp pages and
// returned by the fan collection API. The shapes mirror the site's
// payloads; conversion to pipeline types happens in the bandcamp
// package.
package dto

// FanPageData is the data-blob payload embedded in the fan's
// collection page.
type FanPageData struct {
	FanData        FanData        `json:"fan_data"`
	CollectionData CollectionData `json:"collection_data"`
	HiddenData     CollectionData `json:"hidden_data"`
	ItemCache      ItemCache      `json:"item_cache"`
}

// FanData identifies the fan account the page belongs to.
type FanData struct {
	FanID int64 `json:"fan_id"`
}

// CollectionData is the first page of one collection scope (regular or
// hidden), embedded directly in the fan page.
type CollectionData struct {
	BatchSize      int64             `json:"batch_size"`
	ItemCount      *int64            `json:"item_count"`
	LastToken      *string           `json:"last_token"`
	RedownloadURLs map[string]string `json:"redownload_urls"`
}

// ItemCache carries display metadata (title, artist) for the items on
// the first page, keyed by sale item id.
type ItemCache struct {
	Collection map[string]CachedItem `json:"collection"`
	Hidden     map[string]CachedItem `json:"hidden"`
}

// CachedItem is one item's display metadata.
type CachedItem struct {
	SaleItemID int64  `json:"sale_item_id"`
	ItemID     int64  `json:"item_id"`
	ItemType   string `json:"item_type"`
	BandName   string `json:"band_name"`
	ItemTitle  string `json:"item_title"`
}

// CollectionItemsPage is one page from the paginated collection API.
// LastToken is the cursor for the next page.
type CollectionItemsPage struct {
	MoreAvailable  bool              `json:"more_available"`
	LastToken      string            `json:"last_token"`
	RedownloadURLs map[string]string `json:"redownload_urls"`
}
