package tle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound reports a name that is absent from a catalog.
var ErrNotFound = errors.New("tle: satellite not found")

// Catalog is an immutable, ordered set of named element sets. Entries are
// validated lazily: a catalog may hold malformed lines, which surface as
// errors only when the entry is parsed.
type Catalog struct {
	Source     string
	LoadedAt   time.Time
	EpochRange EpochRange

	entries []CatalogEntry
	index   map[string]int
}

// NewCatalog builds a catalog from entries. Name lookup is case-insensitive;
// when two entries share a name the first one wins.
func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{
		LoadedAt: time.Now().UTC(),
		entries:  make([]CatalogEntry, len(entries)),
		index:    make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i, e := range c.entries {
		key := foldName(e.Name)
		if _, dup := c.index[key]; !dup {
			c.index[key] = i
		}
		el, err := ParseElements(e.Line1, e.Line2)
		if err != nil {
			continue
		}
		t := el.EpochTime()
		if c.EpochRange.Min.IsZero() || t.Before(c.EpochRange.Min) {
			c.EpochRange.Min = t
		}
		if t.After(c.EpochRange.Max) {
			c.EpochRange.Max = t
		}
	}
	return c
}

// LoadCatalogJSON decodes a JSON array of {"name","line1","line2"} objects.
func LoadCatalogJSON(r io.Reader) (*Catalog, error) {
	var entries []CatalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return NewCatalog(entries), nil
}

// LoadCatalogFile reads a catalog from path. Files ending in .json are
// decoded as JSON, anything else as 3-line TLE text.
func LoadCatalogFile(path string, logger *slog.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	var c *Catalog
	if strings.EqualFold(filepath.Ext(path), ".json") {
		c, err = LoadCatalogJSON(f)
	} else {
		var entries []CatalogEntry
		entries, err = Parse(f, logger)
		if err == nil {
			c = NewCatalog(entries)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// Lookup returns the first entry whose name matches name ignoring case.
func (c *Catalog) Lookup(name string) (CatalogEntry, bool) {
	i, ok := c.index[foldName(name)]
	if !ok {
		return CatalogEntry{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of the catalog entries in load order.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the entry names in load order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

func foldName(s string) string {
	return strings.ToLower(s)
}
