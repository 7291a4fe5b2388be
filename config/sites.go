package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"pricecompare/models"
)

// sitesFile is the on-disk layout of SITES_FILE.
type sitesFile struct {
	Sites []models.SiteConfig `yaml:"sites"`
}

// DefaultSites returns the built-in storefront list.
func DefaultSites() []models.SiteConfig {
	return []models.SiteConfig{
		{Country: "🇪🇸 Spain", Domain: "amazon.es", Currency: "EUR"},
		{Country: "🇫🇷 France", Domain: "amazon.fr", Currency: "EUR"},
		{Country: "🇩🇪 Germany", Domain: "amazon.de", Currency: "EUR"},
		{Country: "🇮🇹 Italy", Domain: "amazon.it", Currency: "EUR"},
		{Country: "🇬🇧 UK", Domain: "amazon.co.uk", Currency: "GBP"},
	}
}

// LoadSites reads a YAML storefront list such as:
//
//	sites:
//	  - country: "🇩🇪 Germany"
//	    domain: amazon.de
//	    currency: EUR
//	    affiliate_tag: mytag-21
func LoadSites(path string) ([]models.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read sites file %q: %w", path, err)
	}

	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse sites file %q: %w", path, err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("config: sites file %q lists no sites", path)
	}

	for i := range f.Sites {
		f.Sites[i].Domain = strings.ToLower(strings.TrimSpace(f.Sites[i].Domain))
		f.Sites[i].Currency = strings.ToUpper(strings.TrimSpace(f.Sites[i].Currency))
	}
	return f.Sites, nil
}

// applyAffiliateEnv overrides affiliate tags from AMAZON_AFFILIATE_<CC>,
// where CC is the last label of the domain ("uk" for amazon.co.uk).
func applyAffiliateEnv(sites []models.SiteConfig) []models.SiteConfig {
	out := make([]models.SiteConfig, len(sites))
	copy(out, sites)

	for i, s := range out {
		cc := s.Domain
		if idx := strings.LastIndex(cc, "."); idx >= 0 {
			cc = cc[idx+1:]
		}
		if tag := os.Getenv("AMAZON_AFFILIATE_" + strings.ToUpper(cc)); tag != "" {
			out[i].AffiliateTag = tag
		}
	}
	return out
}
