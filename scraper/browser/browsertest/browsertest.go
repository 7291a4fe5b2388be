// Package browsertest provides an in-memory browser.Browser serving canned
// HTML, for tests that exercise extraction without launching Chrome.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pricecompare/scraper/browser"
)

// Doc is the rendered state of one URL.
type Doc struct {
	HTML  string
	Title string
}

// Browser serves Pages by exact URL and tracks open tabs.
type Browser struct {
	Pages     map[string]Doc
	RenderErr error
	WaitErr   error
	// Delay is applied to every Render and honours context cancellation.
	Delay time.Duration

	mu       sync.Mutex
	rendered []string
	options  []browser.RenderOptions
	open     int
	closed   bool
}

// New returns a Browser serving pages.
func New(pages map[string]Doc) *Browser {
	if pages == nil {
		pages = map[string]Doc{}
	}
	return &Browser{Pages: pages}
}

func (b *Browser) Render(ctx context.Context, url string, opts browser.RenderOptions) (browser.Page, error) {
	if b.Delay > 0 {
		t := time.NewTimer(b.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.rendered = append(b.rendered, url)
	b.options = append(b.options, opts)
	if b.RenderErr != nil {
		return nil, b.RenderErr
	}
	doc, ok := b.Pages[url]
	if !ok {
		return nil, fmt.Errorf("browsertest: no page for %s", url)
	}
	b.open++
	return &page{b: b, doc: doc}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Rendered lists every URL passed to Render, in call order.
func (b *Browser) Rendered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.rendered...)
}

// Options lists the RenderOptions of every Render call.
func (b *Browser) Options() []browser.RenderOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]browser.RenderOptions(nil), b.options...)
}

// OpenPages is the number of pages rendered but not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type page struct {
	b    *Browser
	doc  Doc
	once sync.Once
}

func (p *page) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.doc.HTML, nil
}

func (p *page) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.doc.Title, nil
}

func (p *page) WaitFor(ctx context.Context, _ string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.b.WaitErr
}

func (p *page) Close() error {
	p.once.Do(func() {
		p.b.mu.Lock()
		p.b.open--
		p.b.mu.Unlock()
	})
	return nil
}

// Launcher hands out a fixed Browser, or Err.
type Launcher struct {
	Browser *Browser
	Err     error

	launches atomic.Int32
}

func (l *Launcher) Launch(ctx context.Context) (browser.Browser, error) {
	l.launches.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Browser, nil
}

// Launches counts Launch calls.
func (l *Launcher) Launches() int {
	return int(l.launches.Load())
}
