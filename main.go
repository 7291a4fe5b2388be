package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"pricecompare/config"
	"pricecompare/scraper/amazon"
	"pricecompare/scraper/browser"
	"pricecompare/services"
	"pricecompare/storage"
	"pricecompare/utils"
)

var rootCmd = &cobra.Command{
	Use:   "pricecompare",
	Short: "Compare Amazon prices across European storefronts",
	Long: "Searches every configured Amazon storefront for a query, converts the first priced " +
		"result of each to a reference currency and groups the offers by base model.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired comparison pipeline shared by every command.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	cache   *storage.ResultCache
	compare *services.CompareService
	report  *services.ReportService
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerTo(utils.ParseLevel(cfg.LogLevel), os.Stdout, os.Stderr)

	launcher, err := browser.NewLauncher(cfg.RenderEngine, browser.LaunchOptions{
		ChromeBin: cfg.ChromeBin,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		return nil, err
	}

	extractor := amazon.New(amazon.Options{
		NavTimeout:         cfg.NavTimeout,
		SlotWait:           cfg.SlotWait,
		SettleDelay:        cfg.SettleDelay,
		ProductImageLookup: cfg.ProductImageLookup,
		ProductPageTimeout: cfg.ProductPageTimeout,
		BlockMarkers:       cfg.BlockMarkers,
		UserAgent:          cfg.UserAgent,
		AcceptLanguage:     cfg.AcceptLanguage,
	}, logger)

	rates := services.NewExchangeRateHost(cfg.ExchangeRateURL, cfg.ExchangeRateAPIKey, cfg.ExchangeRateTimeout)
	converter := services.NewCurrencyConverter(rates, cfg.ReferenceCurrency, logger)

	cache := storage.NewResultCache(cfg.CacheTTL,
		storage.WithMaxEntries(cfg.CacheMaxEntries),
		storage.WithLogger(logger),
	)

	svc := services.NewCompareService(cfg.Sites, launcher, extractor, converter, cache, services.CompareOptions{
		MaxConcurrency:     cfg.MaxConcurrency,
		DispatchIntervalMs: cfg.DispatchIntervalMs,
		SiteTimeout:        cfg.SiteTimeout,
		QueryTimeout:       cfg.QueryTimeout,
		LaunchTimeout:      cfg.BrowserLaunchTimeout,
		LaunchAttempts:     cfg.MaxRetries,
		LaunchRetryDelay:   time.Second,
		Coalesce:           cfg.CoalesceQueries,
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		cache:   cache,
		compare: svc,
		report:  services.NewReportService(cfg.ReferenceCurrency, logger),
	}, nil
}
