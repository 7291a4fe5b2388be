package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// leadingFloat matches the longest numeric prefix a lenient float parse accepts.
var leadingFloat = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)`)

// ParsePrice turns storefront price text such as "1.234,56 €" or "£329.99"
// into a number. It returns NaN when no number can be read; callers must
// treat NaN as a parse failure, never as zero.
//
// A comma positioned after the last period marks European formatting
// (periods group thousands, the comma is the decimal point). Otherwise
// commas are thousands separators.
func ParsePrice(text string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, text)

	if cleaned == "" {
		return math.NaN()
	}

	if strings.Contains(cleaned, ",") && strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	match := leadingFloat.FindString(cleaned)
	if match == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
