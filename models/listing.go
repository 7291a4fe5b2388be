package models

import "time"

// SiteConfig describes one regional storefront. Loaded once at start-up and
// never modified afterwards.
type SiteConfig struct {
	Country      string `yaml:"country" json:"country" validate:"required"`
	Domain       string `yaml:"domain" json:"domain" validate:"required,hostname"`
	Currency     string `yaml:"currency" json:"currency" validate:"required,len=3,uppercase"`
	AffiliateTag string `yaml:"affiliate_tag,omitempty" json:"-"`
}

// Listing is the first priced search result extracted from one storefront.
// ReferencePrice is filled in once by the currency normalizer and is left
// untouched after that.
type Listing struct {
	Country        string  `json:"country"`
	Domain         string  `json:"domain"`
	Currency       string  `json:"currency"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Price          float64 `json:"price"`
	ReferencePrice float64 `json:"priceEUR"`
	ImageURL       *string `json:"imageUrl"`
	ItemID         string  `json:"-"`
}

// Image returns the image URL or "" when the listing has none.
func (l *Listing) Image() string {
	if l.ImageURL == nil {
		return ""
	}
	return *l.ImageURL
}

// Product is a listing as it appears inside a ProductGroup.
type Product struct {
	Listing
	IsBestPrice bool `json:"isBestPrice,omitempty"`
}

// ProductGroup clusters listings believed to be the same base model.
// Products are sorted ascending by reference price; BestPriceIndex points at
// the cheapest one, which is always the first.
type ProductGroup struct {
	BaseModel      string    `json:"baseModel"`
	Products       []Product `json:"products"`
	BestPrice      float64   `json:"bestPrice"`
	BestPriceIndex int       `json:"-"`
}

// ComparisonReport holds summary figures over a set of grouped results.
type ComparisonReport struct {
	Query             string
	GeneratedAt       time.Time
	ReferenceCurrency string
	TotalGroups       int
	TotalProducts     int
	AveragePrice      float64
	Cheapest          *Product
	MostExpensive     *Product
	ProductsByCountry map[string]int
}
