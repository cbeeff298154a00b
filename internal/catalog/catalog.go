// Package catalog provides the static, read-only service catalog that
// subscriptions may reference by id.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"subledger/internal/core"
)

//go:embed catalog.json
var defaultCatalog []byte

type file struct {
	Categories map[string]string   `json:"categories"`
	Services   []core.CatalogEntry `json:"services"`
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	entries map[string]core.CatalogEntry
	order   []string
	labels  map[string]string
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a JSON file. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		entries: make(map[string]core.CatalogEntry, len(f.Services)),
		labels:  f.Categories,
	}
	if c.labels == nil {
		c.labels = map[string]string{}
	}
	for _, e := range f.Services {
		if e.ID == "" {
			return nil, fmt.Errorf("parse catalog: service without id (%q)", e.Name)
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate service id %q", e.ID)
		}
		for _, p := range e.Plans {
			if !p.Cycle.Valid() {
				return nil, fmt.Errorf("parse catalog: %s/%s: %w", e.ID, p.ID, core.ErrInvalidCycle)
			}
		}
		c.entries[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// New builds a catalog from in-memory entries; used by tests and embedders.
func New(entries []core.CatalogEntry, labels map[string]string) *Catalog {
	c := &Catalog{entries: map[string]core.CatalogEntry{}, labels: map[string]string{}}
	for k, v := range labels {
		c.labels[k] = v
	}
	for _, e := range entries {
		if _, dup := c.entries[e.ID]; !dup {
			c.order = append(c.order, e.ID)
		}
		c.entries[e.ID] = e
	}
	return c
}

func (c *Catalog) Lookup(id string) (core.CatalogEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Entries returns all services in catalog order.
func (c *Catalog) Entries() []core.CatalogEntry {
	out := make([]core.CatalogEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// CategoryLabels returns a copy of the category key -> display label map.
func (c *Catalog) CategoryLabels() map[string]string {
	out := make(map[string]string, len(c.labels))
	for k, v := range c.labels {
		out[k] = v
	}
	return out
}

// Label returns the display label for a category key, or the key itself.
func (c *Catalog) Label(key string) string {
	if l, ok := c.labels[key]; ok {
		return l
	}
	return key
}

// Plan looks up a plan of a catalog entry.
func (c *Catalog) Plan(entryID, planID string) (core.Plan, bool) {
	e, ok := c.entries[entryID]
	if !ok {
		return core.Plan{}, false
	}
	return e.Plan(planID)
}
