package amazon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/models"
	"pricecompare/scraper"
	"pricecompare/scraper/browser/browsertest"
	"pricecompare/utils"
)

var (
	siteDE = models.SiteConfig{Country: "Germany", Domain: "amazon.de", Currency: "EUR"}
	siteUK = models.SiteConfig{Country: "UK", Domain: "amazon.co.uk", Currency: "GBP"}
	siteFR = models.SiteConfig{Country: "France", Domain: "amazon.fr", Currency: "EUR"}
	siteIT = models.SiteConfig{Country: "Italy", Domain: "amazon.it", Currency: "EUR"}
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func testExtractor(lookup bool) *Extractor {
	return New(Options{
		ProductImageLookup: lookup,
		BlockMarkers:       []string{"CAPTCHA"},
		UserAgent:          "test-agent",
		AcceptLanguage:     "en-GB,en;q=0.9",
	}, utils.NewDiscardLogger())
}

func TestExtractFirstPricedResult(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.de/s?k=iphone+15": {HTML: fixture(t, "search_main_slot.html"), Title: "Amazon.de : iphone 15"},
	})

	got, err := testExtractor(true).Extract(context.Background(), siteDE, "iphone 15", b)
	require.NoError(t, err)

	assert.Equal(t, "Germany", got.Country)
	assert.Equal(t, "amazon.de", got.Domain)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "Apple iPhone 15 (128 GB) - Schwarz", got.Title)
	assert.Equal(t, "https://amazon.de/dp/B0CHX1W1XY", got.Link)
	assert.InDelta(t, 1234.56, got.Price, 1e-9)
	assert.Equal(t, "B0CHX1W1XY", got.ItemID)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://m.media-amazon.com/images/I/71d7rfSl0wL._AC_SL1500_.jpg", *got.ImageURL)

	// High resolution listing image: no product page visit.
	assert.Equal(t, []string{"https://amazon.de/s?k=iphone+15"}, b.Rendered())
	assert.Zero(t, b.OpenPages())

	opts := b.Options()[0]
	assert.Equal(t, "test-agent", opts.UserAgent)
	assert.Equal(t, "en-GB,en;q=0.9", opts.AcceptLanguage)
}

func TestExtractAltLayoutFetchesProductImage(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.co.uk/s?k=airpods+pro": {HTML: fixture(t, "search_alt_layout.html")},
		"https://amazon.co.uk/dp/B0BDHWDR12":   {HTML: fixture(t, "product_page.html")},
	})

	got, err := testExtractor(true).Extract(context.Background(), siteUK, "airpods pro", b)
	require.NoError(t, err)

	assert.Equal(t, "Apple AirPods Pro (2nd Generation)", got.Title)
	assert.Equal(t, "https://amazon.co.uk/dp/B0BDHWDR12", got.Link)
	assert.InDelta(t, 229.0, got.Price, 1e-9)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://m.media-amazon.com/images/I/61SUj2aKoEL._AC_SL1500_.jpg", *got.ImageURL)
	assert.Len(t, b.Rendered(), 2)
	assert.Zero(t, b.OpenPages())
}

func TestExtractKeepsListingImageWhenProductPageFails(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.co.uk/s?k=airpods": {HTML: fixture(t, "search_alt_layout.html")},
	})

	got, err := testExtractor(true).Extract(context.Background(), siteUK, "airpods", b)
	require.NoError(t, err)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://m.media-amazon.com/images/I/61SUj2aKoEL.jpg", *got.ImageURL)
	assert.Zero(t, b.OpenPages())
}

func TestExtractSynthesizesImageFromItemID(t *testing.T) {
	html := `<div class="s-main-slot">
	  <div data-asin="B0D1XD1ZV3" data-index="1">
	    <h2><a href="/dp/B0D1XD1ZV3"><span>Nintendo Switch OLED</span></a></h2>
	    <span class="a-price"><span class="a-offscreen">319,99 €</span></span>
	  </div></div>`
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.it/s?k=switch": {HTML: html},
	})

	got, err := testExtractor(false).Extract(context.Background(), siteIT, "switch", b)
	require.NoError(t, err)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://images-na.ssl-images-amazon.com/images/I/B0D1XD1ZV3.01._AC_SL1500_.jpg", *got.ImageURL)
	assert.InDelta(t, 319.99, got.Price, 1e-9)
}

func TestExtractFailures(t *testing.T) {
	card := func(inner string) string {
		return `<div class="s-main-slot"><div data-asin="B000000001" data-index="1">` + inner + `</div></div>`
	}

	tests := []struct {
		name string
		html string
		want error
	}{
		{name: "captcha interstitial", html: fixture(t, "captcha.html"), want: scraper.ErrBlocked},
		{name: "no cards", html: fixture(t, "no_results.html"), want: scraper.ErrNoResult},
		{name: "card without price", html: card(`<h2><a href="/dp/B000000001"><span>Thing</span></a></h2>`), want: scraper.ErrNoResult},
		{name: "only sponsored", html: card(`<h2><a href="/sspa/click?x=1"><span>Ad</span></a></h2><span class="a-price"><span class="a-offscreen">5,00 €</span></span>`), want: scraper.ErrNoResult},
		{name: "empty title", html: card(`<h2><a href="/dp/B000000001"><span>  </span></a></h2><span class="a-price"><span class="a-offscreen">5,00 €</span></span>`), want: scraper.ErrIncompleteData},
		{name: "mailto link", html: card(`<h2><a href="mailto:deals@example.com"><span>Deal</span></a></h2><span class="a-price"><span class="a-offscreen">5,00 €</span></span>`), want: scraper.ErrInvalidLink},
		{name: "unparseable price", html: card(`<h2><a href="/dp/B000000001"><span>Thing</span></a></h2><span class="a-price"><span class="a-offscreen">N/A</span></span>`), want: scraper.ErrBadPrice},
		{name: "zero price", html: card(`<h2><a href="/dp/B000000001"><span>Thing</span></a></h2><span class="a-price"><span class="a-offscreen">0,00 €</span></span>`), want: scraper.ErrBadPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := browsertest.New(map[string]browsertest.Doc{
				"https://amazon.fr/s?k=q": {HTML: tt.html},
			})
			got, err := testExtractor(false).Extract(context.Background(), siteFR, "q", b)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var xerr *scraper.ExtractionError
			require.True(t, errors.As(err, &xerr))
			assert.Equal(t, "amazon.fr", xerr.Domain)
			assert.Zero(t, b.OpenPages())
		})
	}
}

func TestExtractBlockedByTitle(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.fr/s?k=q": {HTML: "<html></html>", Title: "Amazon CAPTCHA"},
	})
	_, err := testExtractor(false).Extract(context.Background(), siteFR, "q", b)
	assert.ErrorIs(t, err, scraper.ErrBlocked)
}

func TestExtractRenderError(t *testing.T) {
	boom := errors.New("net::ERR_CONNECTION_RESET")
	b := browsertest.New(nil)
	b.RenderErr = boom

	_, err := testExtractor(false).Extract(context.Background(), siteFR, "q", b)
	assert.ErrorIs(t, err, boom)
	var xerr *scraper.ExtractionError
	assert.False(t, errors.As(err, &xerr))
}

func TestExtractSlotWaitMissIsIgnored(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.de/s?k=iphone": {HTML: fixture(t, "search_main_slot.html")},
	})
	b.WaitErr = context.DeadlineExceeded

	e := testExtractor(false)
	e.opts.SlotWait = 1
	got, err := e.Extract(context.Background(), siteDE, "iphone", b)
	require.NoError(t, err)
	assert.Equal(t, "B0CHX1W1XY", got.ItemID)
}

func TestExtractCancelledContext(t *testing.T) {
	b := browsertest.New(map[string]browsertest.Doc{
		"https://amazon.de/s?k=iphone": {HTML: fixture(t, "search_main_slot.html")},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testExtractor(false).Extract(ctx, siteDE, "iphone", b)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.OpenPages())
}
