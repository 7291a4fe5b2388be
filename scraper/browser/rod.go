package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"pricecompare/utils"
)

// RodLauncher starts a headless Chrome through go-rod.
type RodLauncher struct {
	opts   LaunchOptions
	logger *utils.Logger
}

func NewRodLauncher(opts LaunchOptions, logger *utils.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, logger: logger}
}

func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	ln := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	if bin := findChromeBinary(l.opts.ChromeBin); bin != "" {
		ln = ln.Bin(bin)
		l.logger.Info("[browser] Starting rod, binary: %s", bin)
	} else {
		l.logger.Info("[browser] Starting rod with auto-detected browser")
	}

	type launched struct {
		browser *rod.Browser
		err     error
	}
	done := make(chan launched, 1)
	go func() {
		u, err := ln.Launch()
		if err != nil {
			done <- launched{err: err}
			return
		}
		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			ln.Kill()
			done <- launched{err: err}
			return
		}
		done <- launched{browser: b}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("rod: start browser: %w", res.err)
		}
		return &rodBrowser{browser: res.browser, launcher: ln}, nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.browser != nil {
				_ = res.browser.Close()
				ln.Kill()
			}
		}()
		return nil, fmt.Errorf("rod: start browser: %w", ctx.Err())
	}
}

type rodBrowser struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	closeOnce sync.Once
}

func (b *rodBrowser) Render(ctx context.Context, url string, opts RenderOptions) (Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("rod: open tab: %w", err)
	}
	p := &rodPage{page: page}

	if opts.UserAgent != "" || opts.AcceptLanguage != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.AcceptLanguage,
		}); err != nil {
			p.Close()
			return nil, fmt.Errorf("rod: set user agent: %w", err)
		}
	}

	nav := page.Context(ctx)
	if opts.Timeout > 0 {
		nav = nav.Timeout(opts.Timeout)
		defer nav.CancelTimeout()
	}
	if err := nav.Navigate(url); err != nil {
		p.Close()
		return nil, fmt.Errorf("rod: navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		p.Close()
		return nil, fmt.Errorf("rod: wait load %s: %w", url, err)
	}
	return p, nil
}

func (b *rodBrowser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.browser.Close()
		b.launcher.Kill()
	})
	return err
}

type rodPage struct {
	page      *rod.Page
	closeOnce sync.Once
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("rod: read content: %w", err)
	}
	return html, nil
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("rod: read title: %w", err)
	}
	return info.Title, nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	pg := p.page.Context(ctx)
	if timeout > 0 {
		pg = pg.Timeout(timeout)
		defer pg.CancelTimeout()
	}
	_, err := pg.Element(selector)
	return err
}

func (p *rodPage) Close() error {
	var err error
	p.closeOnce.Do(func() { err = p.page.Close() })
	return err
}
