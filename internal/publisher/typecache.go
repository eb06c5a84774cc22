package publisher

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/database"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/domain"
)

// DefaultTypeCacheSize bounds the number of cached type descriptions.
const DefaultTypeCacheSize = 256

// ErrMissingTypeDescription means the reference table has no entry for a type code.
// The reference set was never loaded; this is a setup error.
var ErrMissingTypeDescription = errors.New("missing type description")

// TypeStore reads reference entries.
type TypeStore interface {
	Get(ctx context.Context, id int64) (*domain.ReferenceEntry, error)
}

// TypeCache is a bounded read-through cache of type code descriptions.
type TypeCache struct {
	store TypeStore
	cache *lru.Cache[int64, string]
}

// NewTypeCache creates a cache holding up to size descriptions.
func NewTypeCache(store TypeStore, size int) (*TypeCache, error) {
	if size <= 0 {
		size = DefaultTypeCacheSize
	}
	cache, err := lru.New[int64, string](size)
	if err != nil {
		return nil, fmt.Errorf("create type cache: %w", err)
	}
	return &TypeCache{store: store, cache: cache}, nil
}

// Lookup returns the description for code, reading the store on a miss.
func (c *TypeCache) Lookup(ctx context.Context, code int64) (string, error) {
	if desc, ok := c.cache.Get(code); ok {
		return desc, nil
	}

	entry, err := c.store.Get(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", fmt.Errorf("%w: type %d (run get-reference-set first)", ErrMissingTypeDescription, code)
		}
		return "", fmt.Errorf("lookup type %d: %w", code, err)
	}

	c.cache.Add(code, entry.Description)
	return entry.Description, nil
}

// Invalidate drops one code.
func (c *TypeCache) Invalidate(code int64) {
	c.cache.Remove(code)
}

// Purge drops every cached description, e.g. after the reference set was reloaded.
func (c *TypeCache) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached descriptions.
func (c *TypeCache) Len() int {
	return c.cache.Len()
}
