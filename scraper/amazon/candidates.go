package amazon

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricecompare/scraper"
)

var (
	asinPath  = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})`)
	resizeSL  = regexp.MustCompile(`_AC_SL\d+_`)
	resizeAny = regexp.MustCompile(`_AC_[^_]+_`)
	slSize    = regexp.MustCompile(`_AC_SL(\d+)_`)

	// Last-resort price detection over every span in a card.
	currencyText = regexp.MustCompile(`[\d,.]+\s*(?:[€£$]|EUR|GBP)|[€£$]\s*\d`)
)

// cardStrategy locates result cards. Strategies are tried in order and the
// first one that yields a usable candidate wins.
type cardStrategy struct {
	name  string
	cards string
}

var cardStrategies = []cardStrategy{
	{name: "result-slot", cards: "div.s-main-slot div[data-asin][data-index]"},
	{name: "search-result", cards: `[data-component-type="s-search-result"][data-asin]`},
	{name: "result-list", cards: ".s-result-list [data-asin]"},
	{name: "any-asin", cards: "[data-asin]"},
}

var titleRules = scraper.Rules(
	"h2 a span",
	"h2 a",
	"h2 span",
	"[data-cy='title-recipe'] a",
	".s-title-instructions-style a",
)

var priceRules = scraper.Rules(
	".a-price .a-offscreen",
	".a-price-whole",
	".a-price .a-price-whole",
	"span.a-price",
	".a-price span",
	"[data-a-color='price'] span",
	".a-price[data-a-color='price']",
)

// candidate is the raw material read off one result card.
type candidate struct {
	ItemID    string
	Title     string
	Href      string
	PriceText string
	Image     string
}

// selection is what DOM evaluation hands back to the extractor.
type selection struct {
	Candidate candidate
	Strategy  string
	Cards     int
	Found     bool
}

// selectCandidate picks the first card with an item id, a title, a price
// and a navigable href. It only reads doc.
func selectCandidate(doc *goquery.Document, domain string) selection {
	var res selection
	for _, st := range cardStrategies {
		cards := doc.Find(st.cards)
		res.Cards += cards.Length()
		cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
			c, ok := readCard(card, domain)
			if !ok {
				return true
			}
			res = selection{Candidate: c, Strategy: st.name, Cards: res.Cards, Found: true}
			return false
		})
		if res.Found {
			return res
		}
	}
	return res
}

func readCard(card *goquery.Selection, domain string) (candidate, bool) {
	asin := strings.TrimSpace(card.AttrOr("data-asin", ""))
	if asin == "" {
		return candidate{}, false
	}

	titleEl, hrefEl := findTitle(card)
	if titleEl == nil {
		return candidate{}, false
	}
	href := "/dp/" + asin
	if hrefEl != nil {
		href = strings.TrimSpace(hrefEl.AttrOr("href", ""))
	}
	if skipHref(href) {
		return candidate{}, false
	}

	priceText := findPrice(card)
	if priceText == "" {
		return candidate{}, false
	}

	return candidate{
		ItemID:    asin,
		Title:     scraper.ReadValue(titleEl, nil),
		Href:      href,
		PriceText: priceText,
		Image:     listingImage(card, domain),
	}, true
}

// findTitle returns the first title element that has an anchor around it,
// inside it or in the card heading. Without any anchor the first title
// element is returned alone.
func findTitle(card *goquery.Selection) (title, anchor *goquery.Selection) {
	for _, r := range titleRules {
		el := card.Find(r.Selector).First()
		if el.Length() == 0 {
			continue
		}
		if title == nil {
			title = el
		}
		for _, a := range []*goquery.Selection{
			el.Closest("a"),
			el.Find("a").First(),
			card.Find("h2 a").First(),
		} {
			if a.Length() > 0 {
				return el, a
			}
		}
	}
	return title, nil
}

func findPrice(card *goquery.Selection) string {
	el, _ := priceRules.First(card, func(s *goquery.Selection) bool {
		return priceValue(s) != ""
	})
	if el != nil {
		return priceValue(el)
	}

	var text string
	card.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := scraper.NormaliseText(s.Text()); currencyText.MatchString(t) {
			text = t
			return false
		}
		return true
	})
	return text
}

func priceValue(s *goquery.Selection) string {
	if t := scraper.ReadValue(s, nil); t != "" {
		return t
	}
	return scraper.ReadValue(s, []string{"aria-label"})
}
