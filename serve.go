package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pricecompare/handlers"
	"pricecompare/middleware"
	"pricecompare/scheduler"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP comparison server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if servePort > 0 {
		a.cfg.Port = servePort
	}
	logger := a.logger

	logger.Info("=== Price comparison server starting ===")
	logger.Info("Config: %d sites | engine: %s | concurrency: %d | cache TTL: %v",
		len(a.cfg.Sites), a.cfg.RenderEngine, a.cfg.MaxConcurrency, a.cfg.CacheTTL)

	sweeper := scheduler.NewCacheSweeper(a.cfg.CacheSweepSchedule, a.cache, logger)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	h := handlers.NewHandlers(a.compare, a.cfg.Port, a.cfg.PublicDir, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           middleware.CORS().Handler(h.Router(a.cfg.RateLimitRPS)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("[http] Listening on http://localhost:%d", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("[http] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.QueryTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
