// Package scraper holds what every storefront extractor shares: the error
// taxonomy, data-driven selector resolution and DOM evaluation.
package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrBlocked means the storefront served an anti-bot interstitial. Never retried.
	ErrBlocked = errors.New("blocked by anti-bot interstitial")
	// ErrNoResult means no result card qualified as a candidate.
	ErrNoResult = errors.New("no priced result found")
	// ErrIncompleteData means the chosen candidate lacked a title, price or link.
	ErrIncompleteData = errors.New("incomplete item data")
	// ErrInvalidLink means the link is off-site or a non-navigable placeholder.
	ErrInvalidLink = errors.New("invalid link")
	// ErrBadPrice means the price text parsed to NaN or a non-positive number.
	ErrBadPrice = errors.New("bad price")
)

// ExtractionError reports why one storefront contributed nothing.
type ExtractionError struct {
	Domain string
	Err    error
	Detail string
}

func (e *ExtractionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("extract %s: %v: %s", e.Domain, e.Err, e.Detail)
	}
	return fmt.Sprintf("extract %s: %v", e.Domain, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Fail builds an ExtractionError for domain wrapping one of the sentinels.
func Fail(domain string, err error, format string, args ...any) *ExtractionError {
	return &ExtractionError{Domain: domain, Err: err, Detail: fmt.Sprintf(format, args...)}
}
