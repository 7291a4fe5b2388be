package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SITES_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("SITE_TIMEOUT_MS", "")
	t.Setenv("CACHE_TTL_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Port)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.SiteTimeout)
	assert.Equal(t, 2*time.Minute, cfg.QueryTimeout)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "EUR", cfg.ReferenceCurrency)
	assert.Len(t, cfg.Sites, 5)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SITES_FILE", "")
	t.Setenv("PORT", "8080")
	t.Setenv("SITE_TIMEOUT_MS", "2500")
	t.Setenv("CACHE_TTL_MINUTES", "1")
	t.Setenv("COALESCE_QUERIES", "true")
	t.Setenv("BLOCK_MARKERS", "captcha, robot check ,")
	t.Setenv("AMAZON_AFFILIATE_UK", "tag-uk-21")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2500*time.Millisecond, cfg.SiteTimeout)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.CoalesceQueries)
	assert.Equal(t, []string{"captcha", "robot check"}, cfg.BlockMarkers)

	for _, s := range cfg.Sites {
		if s.Domain == "amazon.co.uk" {
			assert.Equal(t, "tag-uk-21", s.AffiliateTag)
		} else {
			assert.Empty(t, s.AffiliateTag, s.Domain)
		}
	}
}

func TestLoadSitesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.yaml")
	yamlDoc := `
sites:
  - country: "Sweden"
    domain: " Amazon.SE "
    currency: sek
  - country: "Poland"
    domain: amazon.pl
    currency: PLN
    affiliate_tag: pl-tag
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	sites, err := LoadSites(path)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "amazon.se", sites[0].Domain)
	assert.Equal(t, "SEK", sites[0].Currency)
	assert.Equal(t, "pl-tag", sites[1].AffiliateTag)
}

func TestLoadSitesFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sites: []\n"), 0o644))

	_, err := LoadSites(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadSites(t *testing.T) {
	t.Setenv("SITES_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.Sites = append(bad.Sites[:0:0], cfg.Sites...)
	bad.Sites[0].Currency = "euro"
	assert.Error(t, bad.Validate())

	dup := *cfg
	dup.Sites = append(cfg.Sites[:0:0], cfg.Sites...)
	dup.Sites = append(dup.Sites, dup.Sites[0])
	assert.Error(t, dup.Validate())

	engine := *cfg
	engine.RenderEngine = "playwright"
	assert.Error(t, engine.Validate())
}
