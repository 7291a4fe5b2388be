package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"pricecompare/utils"
)

// ChromedpLauncher starts a headless Chrome through chromedp.
type ChromedpLauncher struct {
	opts   LaunchOptions
	logger *utils.Logger
}

// NewChromedpLauncher creates a launcher; an empty ChromeBin triggers binary discovery.
func NewChromedpLauncher(opts LaunchOptions, logger *utils.Logger) *ChromedpLauncher {
	return &ChromedpLauncher{opts: opts, logger: logger}
}

// Launch starts the browser process. ctx bounds start-up only; the session
// lives until Close.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Browser, error) {
	chromeBin := findChromeBinary(l.opts.ChromeBin)
	l.logger.Info("[browser] Starting chromedp, binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-extensions", true),
	)
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("chromedp: start browser: %w", err)
		}
	case <-ctx.Done():
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chromedp: start browser: %w", ctx.Err())
	}

	return &chromedpBrowser{ctx: browserCtx, cancelAlloc: cancelAlloc}, nil
}

type chromedpBrowser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

func (b *chromedpBrowser) Render(ctx context.Context, url string, opts RenderOptions) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	p := &chromedpPage{ctx: tabCtx, cancel: cancelTab}

	// Allocate the target on the tab context itself so later deadlines only
	// cancel individual actions, not the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("chromedp: open tab: %w", err)
	}

	actions := []chromedp.Action{network.Enable()}
	if opts.AcceptLanguage != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{"accept-language": opts.AcceptLanguage}))
	}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent).WithAcceptLanguage(opts.AcceptLanguage))
	}
	actions = append(actions, chromedp.Navigate(url))

	if err := p.run(ctx, opts.Timeout, actions...); err != nil {
		p.Close()
		return nil, fmt.Errorf("chromedp: navigate %s: %w", url, err)
	}
	return p, nil
}

func (b *chromedpBrowser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.ctx)
		b.cancelAlloc()
	})
	return err
}

type chromedpPage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// run executes actions on the tab, stopping when ctx is done or timeout elapses.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromedpPage) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp: read content: %w", err)
	}
	return html, nil
}

func (p *chromedpPage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, 0, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("chromedp: read title: %w", err)
	}
	return title, nil
}

func (p *chromedpPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromedpPage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
