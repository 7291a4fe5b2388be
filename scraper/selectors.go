package scraper

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"pricecompare/scraper/browser"
)

// Rule is one step of a fallback cascade. With no Attrs the matched
// element's text is the value; otherwise the first non-empty attribute wins.
type Rule struct {
	Selector string
	Attrs    []string
}

// Cascade is a priority-ordered list of rules. Listing pages and product
// pages both resolve fields through a Cascade so that markup drift only
// needs a new rule, not new code.
type Cascade []Rule

// Rules builds a text-valued Cascade from plain selectors.
func Rules(selectors ...string) Cascade {
	c := make(Cascade, len(selectors))
	for i, s := range selectors {
		c[i] = Rule{Selector: s}
	}
	return c
}

// WithAttrs returns a copy of c where every rule reads attrs.
func (c Cascade) WithAttrs(attrs ...string) Cascade {
	out := make(Cascade, len(c))
	for i, r := range c {
		out[i] = Rule{Selector: r.Selector, Attrs: attrs}
	}
	return out
}

// First returns the first element under root, in rule order, for which
// accept reports true, along with the index of the rule that matched.
// A nil accept takes any match.
func (c Cascade) First(root *goquery.Selection, accept func(*goquery.Selection) bool) (*goquery.Selection, int) {
	for i, r := range c {
		var found *goquery.Selection
		root.Find(r.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if accept == nil || accept(s) {
				found = s
				return false
			}
			return true
		})
		if found != nil {
			return found, i
		}
	}
	return nil, -1
}

// Value walks the rules in order, reads the first element each rule
// matches, and passes its value through accept. The first accepted value
// is returned. accept may rewrite the value (normalising a URL, say).
func (c Cascade) Value(root *goquery.Selection, accept func(string) (string, bool)) (string, bool) {
	for _, r := range c {
		el := root.Find(r.Selector).First()
		if el.Length() == 0 {
			continue
		}
		raw := ReadValue(el, r.Attrs)
		if raw == "" {
			continue
		}
		if accept == nil {
			return raw, true
		}
		if v, ok := accept(raw); ok {
			return v, true
		}
	}
	return "", false
}

// ReadValue returns the trimmed text of s, or the first non-empty attribute
// among attrs when attrs is set.
func ReadValue(s *goquery.Selection, attrs []string) string {
	if len(attrs) == 0 {
		return NormaliseText(s.Text())
	}
	for _, a := range attrs {
		if v, ok := s.Attr(a); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Evaluate parses the page's rendered DOM and runs fn against it.
// fn must be pure: everything it needs is in the document.
func Evaluate[T any](ctx context.Context, page browser.Page, fn func(*goquery.Document) T) (T, error) {
	var zero T

	html, err := page.Content(ctx)
	if err != nil {
		return zero, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return zero, fmt.Errorf("parse rendered DOM: %w", err)
	}
	return fn(doc), nil
}
