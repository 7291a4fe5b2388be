package amazon

import (
	"net/url"
	"strings"
)

// skipHref reports hrefs that never lead to a product page: sponsored
// redirects, script links and placeholders.
func skipHref(href string) bool {
	return href == "" || href == "#" ||
		strings.Contains(href, "javascript:") ||
		strings.Contains(href, "sspa/click")
}

// SearchURL is the storefront search page for query.
func SearchURL(domain, query string) string {
	return "https://" + domain + "/s?k=" + url.QueryEscape(query)
}

// ResolveLink turns a card href into an absolute product URL on domain.
// Query strings and fragments are dropped, /dp/ and /gp/product/ paths are
// reduced to /dp/<ASIN>, and links pointing at another host are rebased
// onto domain. The ASIN is returned when the path carries one.
func ResolveLink(href, domain string) (link, asin string, ok bool) {
	h := strings.TrimSpace(href)
	if i := strings.IndexAny(h, "?#"); i >= 0 {
		h = h[:i]
	}
	if m := asinPath.FindStringSubmatch(h); m != nil {
		asin = m[1]
		h = "/dp/" + asin
	}
	if skipHref(h) {
		return "", asin, false
	}

	switch {
	case strings.HasPrefix(h, "http://"), strings.HasPrefix(h, "https://"):
		u, err := url.Parse(h)
		if err != nil {
			return "", asin, false
		}
		if onDomain(u.Hostname(), domain) {
			link = h
		} else {
			link = "https://" + domain + u.EscapedPath()
		}
	case strings.HasPrefix(h, "/"):
		link = "https://" + domain + h
	default:
		if u, err := url.Parse(h); err != nil || u.Scheme != "" {
			return "", asin, false
		}
		link = "https://" + domain + "/" + h
	}

	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || !onDomain(u.Hostname(), domain) {
		return "", asin, false
	}
	return link, asin, true
}

// onDomain reports whether host is domain (ignoring a leading "www.") or a
// subdomain of it.
func onDomain(host, domain string) bool {
	host = strings.ToLower(host)
	bare := strings.TrimPrefix(strings.ToLower(domain), "www.")
	return host == bare || strings.HasSuffix(host, "."+bare)
}
