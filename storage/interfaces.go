package storage

import "pricecompare/models"

// GroupStore keeps comparison results keyed by query. Implementations
// normalize the query with CacheKey.
type GroupStore interface {
	Get(query string) ([]*models.ProductGroup, bool)
	Set(query string, groups []*models.ProductGroup)
	Delete(query string)
	Clear()
}

// GroupWriter exports grouped results.
type GroupWriter interface {
	WriteGroups(groups []*models.ProductGroup) error
	Close() error
}
