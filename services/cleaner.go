package services

import (
	"strings"
	"unicode"

	"pricecompare/models"
	"pricecompare/utils"
)

// Cleaner filters normalized listings down to the ones worth grouping.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops listings without a link, without a positive reference price,
// or repeating a link already seen. Survivors are copied with their title
// whitespace collapsed; the input is not modified.
func (c *Cleaner) Clean(in []*models.Listing) []*models.Listing {
	seen := make(map[string]struct{})
	result := make([]*models.Listing, 0, len(in))

	for _, l := range in {
		if l == nil {
			continue
		}
		link := strings.TrimSpace(l.Link)
		if link == "" {
			c.logger.Warn("[cleaner] Dropping %s listing with empty link: %s", l.Domain, l.Title)
			continue
		}
		// NaN fails this comparison too.
		if !(l.ReferencePrice > 0) {
			c.logger.Warn("[cleaner] Dropping %s listing with reference price %v", l.Domain, l.ReferencePrice)
			continue
		}
		if _, dup := seen[link]; dup {
			c.logger.Debug("[cleaner] Duplicate link skipped: %s", link)
			continue
		}
		seen[link] = struct{}{}

		cleaned := *l
		cleaned.Link = link
		cleaned.Title = normaliseText(l.Title)
		result = append(result, &cleaned)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(in), len(result), len(in)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
