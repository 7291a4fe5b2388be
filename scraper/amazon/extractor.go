// Package amazon extracts the first priced search result from an Amazon
// regional storefront.
package amazon

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pricecompare/models"
	"pricecompare/scraper"
	"pricecompare/scraper/browser"
	"pricecompare/utils"
)

const (
	resultSlot     = "div.s-main-slot"
	productSettle  = 500 * time.Millisecond
	titleLogLength = 50
)

// Options tunes page loads and the optional product-page image lookup.
type Options struct {
	NavTimeout         time.Duration
	SlotWait           time.Duration
	SettleDelay        time.Duration
	ProductImageLookup bool
	ProductPageTimeout time.Duration
	BlockMarkers       []string
	UserAgent          string
	AcceptLanguage     string
}

// Extractor is safe for concurrent use; every call opens its own pages.
type Extractor struct {
	opts   Options
	logger *utils.Logger
}

// New creates an Extractor.
func New(opts Options, logger *utils.Logger) *Extractor {
	markers := make([]string, 0, len(opts.BlockMarkers))
	for _, m := range opts.BlockMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	opts.BlockMarkers = markers
	return &Extractor{opts: opts, logger: logger}
}

// Extract searches site for query and returns its first priced result.
// Failures are *scraper.ExtractionError values wrapping a scraper sentinel,
// or plain wrapped errors when the browser itself fails. A partial listing
// is never returned.
func (e *Extractor) Extract(ctx context.Context, site models.SiteConfig, query string, b browser.Browser) (*models.Listing, error) {
	searchURL := SearchURL(site.Domain, query)
	e.logger.Info("[amazon] %s: searching %q", site.Domain, query)

	page, err := b.Render(ctx, searchURL, e.renderOptions(e.opts.NavTimeout))
	if err != nil {
		return nil, fmt.Errorf("amazon %s: load search page: %w", site.Domain, err)
	}
	defer page.Close()

	title, err := page.Title(ctx)
	if err != nil {
		e.logger.Debug("[amazon] %s: could not read page title: %v", site.Domain, err)
	}
	e.logger.Debug("[amazon] %s: page title %q", site.Domain, title)

	html, err := page.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("amazon %s: read search page: %w", site.Domain, err)
	}
	if marker, blocked := e.blocked(html, title); blocked {
		e.logger.Warn("[amazon] %s: anti-bot page detected (%s)", site.Domain, marker)
		return nil, scraper.Fail(site.Domain, scraper.ErrBlocked, "marker %q", marker)
	}

	if e.opts.SlotWait > 0 {
		if err := page.WaitFor(ctx, resultSlot, e.opts.SlotWait); err != nil {
			e.logger.Warn("[amazon] %s: %s not found within %v, continuing", site.Domain, resultSlot, e.opts.SlotWait)
		}
	}
	if err := sleep(ctx, e.opts.SettleDelay); err != nil {
		return nil, fmt.Errorf("amazon %s: %w", site.Domain, err)
	}

	sel, err := scraper.Evaluate(ctx, page, func(doc *goquery.Document) selection {
		return selectCandidate(doc, site.Domain)
	})
	if err != nil {
		return nil, fmt.Errorf("amazon %s: evaluate search page: %w", site.Domain, err)
	}
	if !sel.Found {
		e.logger.Warn("[amazon] %s: no priced item for %q (title %q, %d cards)", site.Domain, query, title, sel.Cards)
		return nil, scraper.Fail(site.Domain, scraper.ErrNoResult, "%d cards scanned", sel.Cards)
	}

	c := sel.Candidate
	e.logger.Debug("[amazon] %s: first result via %s: title=%q price=%q image=%t href=%q",
		site.Domain, sel.Strategy, truncate(c.Title, titleLogLength), c.PriceText, c.Image != "", truncate(c.Href, titleLogLength))

	if c.Title == "" || c.PriceText == "" || c.Href == "" {
		return nil, scraper.Fail(site.Domain, scraper.ErrIncompleteData,
			"title=%t price=%t href=%t", c.Title != "", c.PriceText != "", c.Href != "")
	}

	link, asin, ok := ResolveLink(c.Href, site.Domain)
	if !ok {
		return nil, scraper.Fail(site.Domain, scraper.ErrInvalidLink, "href %q", c.Href)
	}
	if asin == "" {
		asin = c.ItemID
	}

	price := utils.ParsePrice(c.PriceText)
	if math.IsNaN(price) || price <= 0 {
		return nil, scraper.Fail(site.Domain, scraper.ErrBadPrice, "price text %q", c.PriceText)
	}

	image := c.Image
	if NeedsBetterImage(image) && e.opts.ProductImageLookup {
		if better := e.lookupProductImage(ctx, b, link, site.Domain); better != "" {
			image = better
		}
	}
	if image == "" && asin != "" {
		image = ASINImage(asin)
		e.logger.Debug("[amazon] %s: using catalogue image for %s", site.Domain, asin)
	}

	listing := &models.Listing{
		Country:  site.Country,
		Domain:   site.Domain,
		Currency: site.Currency,
		Title:    c.Title,
		Link:     link,
		Price:    price,
		ItemID:   asin,
	}
	if image != "" {
		listing.ImageURL = &image
	}
	e.logger.Info("[amazon] %s: %s %.2f %q", site.Domain, site.Currency, price, truncate(c.Title, titleLogLength))
	return listing, nil
}

// lookupProductImage visits the product page for a better image. Every
// failure is swallowed and reported as "".
func (e *Extractor) lookupProductImage(ctx context.Context, b browser.Browser, link, domain string) string {
	if e.opts.ProductPageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ProductPageTimeout)
		defer cancel()
	}

	page, err := b.Render(ctx, link, e.renderOptions(e.opts.ProductPageTimeout))
	if err != nil {
		e.logger.Debug("[amazon] %s: product page unavailable: %v", domain, err)
		return ""
	}
	defer page.Close()

	if err := sleep(ctx, productSettle); err != nil {
		return ""
	}
	img, err := scraper.Evaluate(ctx, page, func(doc *goquery.Document) string {
		return productPageImage(doc, domain)
	})
	if err != nil {
		e.logger.Debug("[amazon] %s: product page unreadable: %v", domain, err)
		return ""
	}
	if img == "" {
		e.logger.Debug("[amazon] %s: no image on product page, keeping search image", domain)
	}
	return img
}

func (e *Extractor) renderOptions(timeout time.Duration) browser.RenderOptions {
	return browser.RenderOptions{
		Timeout:        timeout,
		UserAgent:      e.opts.UserAgent,
		AcceptLanguage: e.opts.AcceptLanguage,
	}
}

func (e *Extractor) blocked(html, title string) (string, bool) {
	html = strings.ToLower(html)
	title = strings.ToLower(title)
	for _, m := range e.opts.BlockMarkers {
		if strings.Contains(html, m) || strings.Contains(title, m) {
			return m, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
