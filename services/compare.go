package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pricecompare/models"
	"pricecompare/scraper/browser"
	"pricecompare/storage"
	"pricecompare/utils"
)

var (
	// ErrSessionSetup means no browser session could be started.
	ErrSessionSetup = errors.New("browser session setup failed")
	// ErrQueryTimeout means the whole query was cancelled or ran out of time.
	ErrQueryTimeout = errors.New("query timed out")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("empty query")
)

// OrchestratorError is the only error a comparison returns to its caller.
// Kind is ErrSessionSetup or ErrQueryTimeout; Cause is the underlying error.
type OrchestratorError struct {
	Query string
	Kind  error
	Cause error
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("compare %q: %v: %v", e.Query, e.Kind, e.Cause)
}

func (e *OrchestratorError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Extractor fetches the first priced result of one storefront.
type Extractor interface {
	Extract(ctx context.Context, site models.SiteConfig, query string, b browser.Browser) (*models.Listing, error)
}

// CompareOptions holds the orchestration limits.
type CompareOptions struct {
	MaxConcurrency     int
	DispatchIntervalMs int
	SiteTimeout        time.Duration
	QueryTimeout       time.Duration
	LaunchTimeout      time.Duration
	LaunchAttempts     int
	LaunchRetryDelay   time.Duration
	Coalesce           bool
}

// CompareService runs comparisons across every configured storefront and
// caches the grouped results.
type CompareService struct {
	sites     []models.SiteConfig
	launcher  browser.Launcher
	extractor Extractor
	converter *CurrencyConverter
	cleaner   *Cleaner
	cache     storage.GroupStore
	opts      CompareOptions
	retry     *utils.RetryConfig
	logger    *utils.Logger
	flight    singleflight.Group
}

// NewCompareService wires a CompareService. cache may be nil to disable caching.
func NewCompareService(
	sites []models.SiteConfig,
	launcher browser.Launcher,
	extractor Extractor,
	converter *CurrencyConverter,
	cache storage.GroupStore,
	opts CompareOptions,
	logger *utils.Logger,
) *CompareService {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 5
	}
	if opts.SiteTimeout <= 0 {
		opts.SiteTimeout = 10 * time.Second
	}
	return &CompareService{
		sites:     sites,
		launcher:  launcher,
		extractor: extractor,
		converter: converter,
		cleaner:   NewCleaner(logger),
		cache:     cache,
		opts:      opts,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.LaunchAttempts,
			BaseDelay:   opts.LaunchRetryDelay,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Compare answers a query from the cache when it holds a fresh entry and
// scrapes otherwise. Non-empty results are cached. cached reports a hit.
func (s *CompareService) Compare(ctx context.Context, query string) (groups []*models.ProductGroup, cached bool, err error) {
	key := storage.CacheKey(query)
	if key == "" {
		return nil, false, ErrEmptyQuery
	}

	if s.cache != nil {
		if groups, ok := s.cache.Get(key); ok {
			s.logger.Info("[compare] Cache hit for %q", key)
			return groups, true, nil
		}
	}

	if s.opts.Coalesce {
		groups, err = s.coalesced(ctx, key)
	} else {
		groups, err = s.RunScrape(ctx, key)
	}
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil && len(groups) > 0 {
		s.cache.Set(key, groups)
	}
	return groups, false, nil
}

// coalesced shares one scrape between identical concurrent misses. The
// shared scrape is detached from any single caller; each caller still stops
// waiting when its own context ends.
func (s *CompareService) coalesced(ctx context.Context, key string) ([]*models.ProductGroup, error) {
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.RunScrape(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("[compare] Shared in-flight scrape for %q", key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*models.ProductGroup), nil
	case <-ctx.Done():
		return nil, &OrchestratorError{Query: key, Kind: ErrQueryTimeout, Cause: ctx.Err()}
	}
}

// ClearCache drops every cached result.
func (s *CompareService) ClearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// Sites returns the configured storefronts.
func (s *CompareService) Sites() []models.SiteConfig {
	return s.sites
}

// RunScrape scrapes every storefront for query and returns the grouped
// results, possibly empty. Individual storefront failures never fail the
// query; only session setup failure and whole-query cancellation or
// timeout produce an *OrchestratorError.
func (s *CompareService) RunScrape(ctx context.Context, query string) ([]*models.ProductGroup, error) {
	start := time.Now()
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	s.logger.Info("[compare] Scraping %d sites for %q (concurrency %d)", len(s.sites), query, s.opts.MaxConcurrency)

	b, err := s.launch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &OrchestratorError{Query: query, Kind: ErrQueryTimeout, Cause: ctx.Err()}
		}
		return nil, &OrchestratorError{Query: query, Kind: ErrSessionSetup, Cause: err}
	}
	defer func() {
		if err := b.Close(); err != nil {
			s.logger.Warn("[compare] Closing browser: %v", err)
		}
	}()

	listings := s.scrapeSites(ctx, b, query)
	if ctx.Err() != nil {
		return nil, &OrchestratorError{Query: query, Kind: ErrQueryTimeout, Cause: ctx.Err()}
	}
	s.logger.Info("[compare] %d/%d sites returned a listing", len(listings), len(s.sites))

	normalized := s.normalize(ctx, listings)
	if ctx.Err() != nil {
		return nil, &OrchestratorError{Query: query, Kind: ErrQueryTimeout, Cause: ctx.Err()}
	}

	groups := GroupProducts(s.cleaner.Clean(normalized))
	s.logger.Info("[compare] %q done in %v: %d groups", query, time.Since(start).Round(time.Millisecond), len(groups))
	if len(groups) > 0 {
		g := groups[0]
		s.logger.Debug("[compare] First group %q: %d products, best %.2f", g.BaseModel, len(g.Products), g.BestPrice)
	}
	return groups, nil
}

func (s *CompareService) launch(ctx context.Context) (browser.Browser, error) {
	var b browser.Browser
	err := s.retry.Do(ctx, "launch browser", func(ctx context.Context) error {
		lctx := ctx
		if s.opts.LaunchTimeout > 0 {
			var cancel context.CancelFunc
			lctx, cancel = context.WithTimeout(ctx, s.opts.LaunchTimeout)
			defer cancel()
		}
		var err error
		b, err = s.launcher.Launch(lctx)
		return err
	})
	return b, err
}

// scrapeSites runs one extraction per site through a bounded pool and
// returns the successful listings in site order.
func (s *CompareService) scrapeSites(ctx context.Context, b browser.Browser, query string) []*models.Listing {
	pool := utils.NewWorkerPool(s.opts.MaxConcurrency, s.opts.DispatchIntervalMs)
	results := make([]*models.Listing, len(s.sites))

	for i, site := range s.sites {
		started := pool.SubmitContext(ctx, func() {
			results[i] = s.scrapeSite(ctx, b, site, query)
		})
		if !started {
			s.logger.Warn("[compare] Query ended before %d remaining sites were dispatched", len(s.sites)-i)
			break
		}
	}
	pool.Wait()

	out := make([]*models.Listing, 0, len(results))
	for _, l := range results {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type siteOutcome struct {
	listing *models.Listing
	err     error
}

// scrapeSite runs the extractor under the per-site deadline. It stops
// waiting at the deadline even when the extractor does not; errors, panics
// and timeouts all yield nil.
func (s *CompareService) scrapeSite(ctx context.Context, b browser.Browser, site models.SiteConfig, query string) *models.Listing {
	siteCtx, cancel := context.WithTimeout(ctx, s.opts.SiteTimeout)
	defer cancel()

	done := make(chan siteOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- siteOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		l, err := s.extractor.Extract(siteCtx, site, query, b)
		done <- siteOutcome{listing: l, err: err}
	}()

	select {
	case out := <-done:
		switch {
		case out.err != nil:
			s.logger.Warn("[compare] %s: %v", site.Domain, out.err)
			return nil
		case out.listing == nil:
			s.logger.Warn("[compare] %s: no listing", site.Domain)
			return nil
		}
		return out.listing
	case <-siteCtx.Done():
		s.logger.Warn("[compare] %s: no result within %v", site.Domain, s.opts.SiteTimeout)
		return nil
	}
}

// normalize converts every listing to the reference currency and applies
// the site's affiliate tag. Listings are copied.
func (s *CompareService) normalize(ctx context.Context, listings []*models.Listing) []*models.Listing {
	tags := make(map[string]string, len(s.sites))
	for _, site := range s.sites {
		tags[site.Domain] = site.AffiliateTag
	}

	out := make([]*models.Listing, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrency)
	for i, l := range listings {
		g.Go(func() error {
			n := *l
			n.ReferencePrice = s.converter.ToReference(gctx, l.Price, l.Currency)
			n.Link = AddAffiliateTag(l.Link, tags[l.Domain])
			out[i] = &n
			return nil
		})
	}
	_ = g.Wait()
	return out
}
