package amazon

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricecompare/scraper"
)

const imageBase = "https://images-na.ssl-images-amazon.com/images/I/"

// Attribute priority when reading an image off a search result card.
var listingImageAttrs = []string{
	"data-src",
	"data-lazy-src",
	"data-a-dynamic-image",
	"src",
	"data-old-src",
	"data-srcset",
}

var listingImageRules = scraper.Rules(
	".s-image img",
	"img[data-image-latency]",
	"img[data-a-dynamic-image]",
	".s-product-image img",
	"img.s-image",
	"img.a-dynamic-image",
	`img[src*="images-na"]`,
	`img[src*="images-amazon"]`,
	`[data-component-type="s-product-image"] img`,
	`.s-result-item img[src*=".jpg"]`,
	`.s-result-item img[src*=".png"]`,
).WithAttrs(listingImageAttrs...)

var productImageRules = scraper.Rules(
	"#landingImage",
	"#imgBlkFront",
	"#main-image",
	"#imageBlock_feature_div img",
	"#leftCol img[data-a-dynamic-image]",
	"#main-image-container img",
	".a-dynamic-image[data-a-dynamic-image]",
	`[data-a-image-name="landingImage"]`,
	"#productImage",
	".a-button-selected img",
	"#imageBlock_feature_div .a-dynamic-image",
	"#imageBlock img",
	"#main-image-container .a-dynamic-image",
	".a-button-thumbnail img[data-a-dynamic-image]",
	"#altImages img[data-a-dynamic-image]",
).WithAttrs("data-a-dynamic-image", "data-src", "src", "data-old-src", "data-lazy-src")

const productImageScan = `img[data-a-dynamic-image], img[src*="images-amazon"], img[src*="images-na"]`

// ASINImage is the catalogue image URL derived from an item id.
func ASINImage(asin string) string {
	return imageBase + asin + ".01._AC_SL1500_.jpg"
}

// NeedsBetterImage reports a missing or low resolution image.
func NeedsBetterImage(u string) bool {
	return u == "" ||
		!strings.Contains(u, "_AC_SL") ||
		strings.Contains(u, "_AC_SL75_") ||
		strings.Contains(u, "_AC_SL150_") ||
		strings.Contains(u, "_AC_SL300_")
}

// NormaliseImage resolves a raw attribute value (plain URL, srcset or
// data-a-dynamic-image JSON) into an absolute high resolution image URL.
// ok is false when the result does not look like a product image.
func NormaliseImage(raw, domain string) (string, bool) {
	v := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(v, "{"):
		best, found := pickDynamic(v)
		if !found {
			return "", false
		}
		v = best
	case strings.ContainsAny(v, " \t\n"):
		v = pickSrcset(v)
	}
	if v == "" {
		return "", false
	}

	v = upgradeResolution(v)

	switch {
	case strings.HasPrefix(v, "//"):
		v = "https:" + v
	case strings.HasPrefix(v, "/"):
		v = "https://" + domain + v
	}
	if i := strings.Index(v, "?"); i >= 0 {
		v = v[:i]
	}

	if !strings.HasPrefix(v, "http") {
		return "", false
	}
	if !strings.Contains(v, ".jpg") && !strings.Contains(v, ".png") &&
		!strings.Contains(v, "images-amazon") && !strings.Contains(v, "images-na") {
		return "", false
	}
	return v, true
}

func upgradeResolution(u string) string {
	if !strings.Contains(u, "_AC_") {
		return u
	}
	u = resizeSL.ReplaceAllString(u, "_AC_SL1500_")
	return resizeAny.ReplaceAllString(u, "_AC_SL1500_")
}

// pickDynamic chooses the largest entry of a {"url":[w,h]} map.
// Ties go to the lexically smallest URL so the choice is stable.
func pickDynamic(raw string) (string, bool) {
	var sizes map[string][]float64
	if err := json.Unmarshal([]byte(raw), &sizes); err != nil || len(sizes) == 0 {
		return "", false
	}
	urls := make([]string, 0, len(sizes))
	for u := range sizes {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	best, bestArea := "", -1.0
	for _, u := range urls {
		area := 0.0
		if dims := sizes[u]; len(dims) >= 2 {
			area = dims[0] * dims[1]
		}
		if area > bestArea {
			best, bestArea = u, area
		}
	}
	return best, true
}

// pickSrcset chooses the candidate with the highest width or density descriptor.
func pickSrcset(raw string) string {
	best, bestScore := "", -1.0
	for _, part := range strings.Split(raw, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		score := 1.0
		if len(fields) > 1 {
			d := strings.TrimRight(fields[1], "wxWX")
			if f, err := strconv.ParseFloat(d, 64); err == nil {
				score = f
			}
		}
		if score > bestScore {
			best, bestScore = fields[0], score
		}
	}
	return best
}

// listingImage resolves the card image, or "" when none qualifies.
func listingImage(card *goquery.Selection, domain string) string {
	img, _ := listingImageRules.Value(card, func(raw string) (string, bool) {
		return NormaliseImage(raw, domain)
	})
	return img
}

// productPageImage finds the main image on a product detail page. When no
// main-image selector yields a usable URL it falls back to the image with
// the largest _AC_SL size token on the page.
func productPageImage(doc *goquery.Document, domain string) string {
	if img, ok := productImageRules.Value(doc.Selection, func(raw string) (string, bool) {
		return NormaliseImage(raw, domain)
	}); ok {
		return img
	}

	best, bestSize := "", 0
	doc.Find(productImageScan).Each(func(_ int, s *goquery.Selection) {
		raw := scraper.ReadValue(s, []string{"data-a-dynamic-image", "src"})
		if strings.HasPrefix(raw, "{") {
			raw, _ = pickDynamic(raw)
		}
		if !strings.HasPrefix(raw, "http") {
			return
		}
		m := slSize.FindStringSubmatch(raw)
		if m == nil {
			return
		}
		if size, _ := strconv.Atoi(m[1]); size > bestSize {
			best, bestSize = raw, size
		}
	})
	if best == "" {
		return ""
	}
	img, _ := NormaliseImage(best, domain)
	return img
}
