// Package insights derives presentation data from a ledger: category
// breakdowns, duplicate detection, the savings score and sort orders. Every
// function is pure over its inputs.
package insights

import (
	"strings"

	"subledger/internal/catalog"
	"subledger/internal/core"
)

// Resolver resolves display names and category labels through the catalog.
// A nil catalog is allowed; custom fields are then used as-is.
type Resolver struct {
	catalog *catalog.Catalog
}

func NewResolver(c *catalog.Catalog) Resolver {
	return Resolver{catalog: c}
}

// DisplayName prefers the user's own name, then the catalog name, then the reference.
func (r Resolver) DisplayName(s core.Subscription) string {
	if n := strings.TrimSpace(s.DisplayName); n != "" {
		return n
	}
	if r.catalog != nil && s.CatalogRef != "" {
		if e, ok := r.catalog.Lookup(s.CatalogRef); ok && e.Name != "" {
			return e.Name
		}
	}
	return s.CatalogRef
}

// CategoryKey returns the catalog category for catalogued entries and the
// record's own category for custom ones, defaulting to "other".
func (r Resolver) CategoryKey(s core.Subscription) string {
	if r.catalog != nil && s.CatalogRef != "" {
		if e, ok := r.catalog.Lookup(s.CatalogRef); ok && e.Category != "" {
			return e.Category
		}
	}
	if c := strings.TrimSpace(s.Category); c != "" {
		return c
	}
	return core.DefaultCategory
}

// CategoryLabel returns the display label of the subscription's category.
func (r Resolver) CategoryLabel(s core.Subscription) string {
	key := r.CategoryKey(s)
	if r.catalog == nil {
		return key
	}
	return r.catalog.Label(key)
}
