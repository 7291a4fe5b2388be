package services

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"pricecompare/models"
)

const unknownModel = "Unknown"

var (
	parenQualifier   = regexp.MustCompile(`\s*\([^)]*\)`)
	bracketQualifier = regexp.MustCompile(`\s*\[[^\]]*\]`)

	// Product lines whose model name is a family word plus one token.
	modelFamilies = []*regexp.Regexp{
		regexp.MustCompile(`(?i)iPhone\s+\d+[a-z]?`),
		regexp.MustCompile(`(?i)iPad\s+\w+`),
		regexp.MustCompile(`(?i)MacBook\s+\w+`),
		regexp.MustCompile(`(?i)AirPods\s+\w+`),
		regexp.MustCompile(`(?i)PlayStation\s+\d+`),
		regexp.MustCompile(`(?i)Nintendo\s+Switch`),
		regexp.MustCompile(`(?i)Samsung\s+Galaxy\s+\w+`),
	}
)

// BaseModel derives the display label of the group a title belongs to.
// Parenthesised and bracketed qualifiers are dropped, then a known product
// family is looked for; failing that the first three words are used.
func BaseModel(title string) string {
	cleaned := bracketQualifier.ReplaceAllString(parenQualifier.ReplaceAllString(title, ""), "")
	cleaned = strings.TrimSpace(cleaned)

	for _, family := range modelFamilies {
		if m := family.FindString(cleaned); m != "" {
			return strings.Join(strings.Fields(m), " ")
		}
	}

	words := strings.Fields(cleaned)
	switch {
	case len(words) == 0:
		return unknownModel
	case len(words) > 3:
		words = words[:3]
	}
	return strings.Join(words, " ")
}

// GroupProducts clusters listings by base model. Products inside a group
// are ordered by reference price with the cheapest flagged; groups are
// ordered by their best price. Ties keep input order. Listings are copied,
// never modified.
func GroupProducts(listings []*models.Listing) []*models.ProductGroup {
	fold := cases.Fold()
	index := make(map[string]int)
	groups := make([]*models.ProductGroup, 0)

	for _, l := range listings {
		if l == nil {
			continue
		}
		label := BaseModel(l.Title)
		key := fold.String(label)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, &models.ProductGroup{BaseModel: label})
		}
		groups[i].Products = append(groups[i].Products, models.Product{Listing: *l})
	}

	for _, g := range groups {
		sort.SliceStable(g.Products, func(a, b int) bool {
			return g.Products[a].ReferencePrice < g.Products[b].ReferencePrice
		})
		g.Products[0].IsBestPrice = true
		g.BestPriceIndex = 0
		g.BestPrice = g.Products[0].ReferencePrice
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].BestPrice < groups[b].BestPrice
	})
	return groups
}

// Flatten returns the listings of groups in output order.
func Flatten(groups []*models.ProductGroup) []*models.Listing {
	var out []*models.Listing
	for _, g := range groups {
		if g == nil {
			continue
		}
		for i := range g.Products {
			l := g.Products[i].Listing
			out = append(out, &l)
		}
	}
	return out
}
