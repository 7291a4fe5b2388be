package services

import (
	"net/url"
	"strings"
)

// placeholderTag marks an affiliate tag that was never filled in.
const placeholderTag = "your-tag"

// AddAffiliateTag sets the "tag" query parameter of link, replacing any
// existing one. Empty or placeholder tags and unparseable links leave link
// unchanged.
func AddAffiliateTag(link, tag string) string {
	tag = strings.TrimSpace(tag)
	if link == "" || tag == "" || strings.Contains(tag, placeholderTag) {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	q := u.Query()
	q.Set("tag", tag)
	u.RawQuery = q.Encode()
	return u.String()
}
