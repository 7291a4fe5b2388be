// Package browser abstracts the headless rendering engine: render a URL,
// wait for selectors, read back the resulting DOM and close the page.
package browser

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// RenderOptions configures a single page load.
type RenderOptions struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

// Page is one open tab inside a Browser session. Pages are never shared
// between goroutines; Close must be called on every path.
type Page interface {
	// Content returns the serialized DOM of the rendered page.
	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// WaitFor blocks until selector matches a ready node or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// Browser is a shared session that can open many pages concurrently.
type Browser interface {
	Render(ctx context.Context, url string, opts RenderOptions) (Page, error)
	Close() error
}

// Launcher starts a new Browser session.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LaunchOptions holds engine-independent start-up settings.
type LaunchOptions struct {
	ChromeBin string
	UserAgent string
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(preferred string) string {
	if preferred != "" {
		return preferred
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
