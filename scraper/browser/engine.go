package browser

import (
	"fmt"

	"pricecompare/utils"
)

// NewLauncher returns the launcher for the named engine ("chromedp" or "rod").
func NewLauncher(engine string, opts LaunchOptions, logger *utils.Logger) (Launcher, error) {
	switch engine {
	case "", "chromedp":
		return NewChromedpLauncher(opts, logger), nil
	case "rod":
		return NewRodLauncher(opts, logger), nil
	default:
		return nil, fmt.Errorf("browser: unknown render engine %q", engine)
	}
}
