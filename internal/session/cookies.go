package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// exportedCookie mirrors the JSON produced by browser cookie-export
// extensions ("Export Cookies" style). Only the fields the site needs
// are mapped; the rest of the export is ignored.
type exportedCookie struct {
	Name     string `json:"Name raw"`
	Content  string `json:"Content raw"`
	Host     string `json:"Host raw,omitempty"`
	Path     string `json:"Path raw,omitempty"`
	Expires  string `json:"Expires raw,omitempty"`
	SendFor  string `json:"Send for raw,omitempty"`
	HTTPOnly string `json:"HTTP only raw,omitempty"`
}

// FileStore is a JarStore backed by a cookie-export JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a store reading and writing path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the export file and converts each entry to an http.Cookie.
func (f *FileStore) Load() ([]*http.Cookie, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	var exported []exportedCookie
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("parse cookie export %s: %w", f.path, err)
	}

	cookies := make([]*http.Cookie, 0, len(exported))
	for _, e := range exported {
		if e.Name == "" {
			continue
		}
		cookies = append(cookies, e.toCookie())
	}
	return cookies, nil
}

// Save writes cookies back in the same export shape, so a file written
// by bcsync can be read by the next run (or by other tools that accept
// the export format).
func (f *FileStore) Save(cookies []*http.Cookie) error {
	exported := make([]exportedCookie, 0, len(cookies))
	for _, c := range cookies {
		e := exportedCookie{
			Name:    c.Name,
			Content: c.Value,
			Host:    BaseURL + "/",
			Path:    "/",
		}
		if !c.Expires.IsZero() {
			e.Expires = strconv.FormatInt(c.Expires.Unix(), 10)
		}
		exported = append(exported, e)
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

// hostReplacer strips the scheme and leading dot from "Host raw" values
// like "https://.bandcamp.com/".
var hostReplacer = strings.NewReplacer("https://.", "", "http://.", "", "https://", "", "http://", "", "/", "")

func (e exportedCookie) toCookie() *http.Cookie {
	c := &http.Cookie{
		Name:   e.Name,
		Value:  e.Content,
		Domain: hostReplacer.Replace(e.Host),
		Path:   e.Path,
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if unix, err := strconv.ParseInt(e.Expires, 10, 64); err == nil && unix > 0 {
		c.Expires = time.Unix(unix, 0)
	}
	if secure, err := strconv.ParseBool(e.SendFor); err == nil {
		c.Secure = secure
	}
	if httpOnly, err := strconv.ParseBool(e.HTTPOnly); err == nil {
		c.HttpOnly = httpOnly
	}
	return c
}
