package cache

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

// Release is one completed download recorded in the cache.
type Release struct {
	ID     string
	Title  string
	Artist string
	Year   int
}

// Line serializes a release to its cache line:
//
//	p199396767| "Galerie" (2022) by Anomalie
func (r Release) Line() string {
	return fmt.Sprintf("%s| %q (%d) by %s", r.ID, r.Title, r.Year, r.Artist)
}

// lineRe matches one cache line. The title group tolerates escaped
// quotes inside the quoted title.
var lineRe = regexp.MustCompile(`^(\w+)\| "((?:[^"\\]*(?:\\.)?)*)" \((\d+)\) by (.*)$`)

// ParseLine parses one cache line.
func ParseLine(line string) (Release, error) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Release{}, fmt.Errorf("malformed cache line: %q", line)
	}

	year, err := strconv.Atoi(m[3])
	if err != nil {
		return Release{}, fmt.Errorf("cache line year: %w", err)
	}

	return Release{
		ID:     m[1],
		Title:  m[2],
		Artist: m[4],
		Year:   year,
	}, nil
}

// Cache is the persistent record of already-downloaded releases, one
// line per release. It lets repeated runs skip completed items without
// touching the network.
//
// The file is guarded by an advisory lock so two runs cannot append to
// it concurrently; Open fails fast when another run holds the lock.
type Cache struct {
	path string
	lock *flock.Flock
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]Release
}

// Open loads the cache at path, creating an empty one when the file
// does not exist, and acquires the lock.
//
// Malformed lines are skipped with a warning rather than failing the
// run. Call Close to release the lock.
func Open(path string, logger zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cache %s is locked by another running instance", path)
	}

	c := &Cache{
		path:    path,
		lock:    lock,
		log:     logger,
		entries: make(map[string]Release),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		_ = lock.Unlock()
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		release, err := ParseLine(line)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping cache line")
			continue
		}
		c.entries[release.ID] = release
	}
	if err := scanner.Err(); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}

	return c, nil
}

// Contains reports whether the release id has already been downloaded.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Len returns the number of cached releases.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Add records a completed release and appends it to the cache file
// immediately, so a later crash cannot lose the entry.
func (c *Cache) Add(release Release) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[release.ID]; ok {
		return nil
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(release.Line() + "\n"); err != nil {
		return err
	}

	c.entries[release.ID] = release
	return nil
}

// Close releases the cache lock.
func (c *Cache) Close() error {
	return c.lock.Unlock()
}
