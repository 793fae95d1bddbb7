// Package markup holds the in-house HTML heuristics: canonical link
// resolution, page-level metadata scraping, coupon detection and
// affiliate brand extraction. Everything here is defensive — malformed
// markup yields empty results, never errors that stop a crawl.
package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/page-inventory/internal/canonical"
)

// ExtractCanonical resolves the page's canonical URL: the
// <link rel="canonical"> href when present, otherwise the fetched URL.
// The result is always normalized.
func ExtractCanonical(html, fallbackURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		href, ok := doc.Find(`link[rel~="canonical"]`).First().Attr("href")
		if ok && strings.TrimSpace(href) != "" {
			return canonical.Normalize(href)
		}
	}
	return canonical.Normalize(fallbackURL)
}

var pageLevelKey = map[string]*regexp.Regexp{
	"PrimaryCategory": regexp.MustCompile(`"PrimaryCategory":\s*"(.*?)"`),
	"TemplateName":    regexp.MustCompile(`"TemplateName":\s*"(.*?)"`),
}

// ExtractPageMeta pulls the publisher's primary category and template
// name out of the page-level data script, when the page carries one.
func ExtractPageMeta(html string) (primaryCategory, templateType *string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil
	}
	script := doc.Find("script#pageLevelData").First().Text()
	if script == "" {
		return nil, nil
	}
	grab := func(key string) *string {
		m := pageLevelKey[key].FindStringSubmatch(script)
		if m == nil || m[1] == "" {
			return nil
		}
		v := m[1]
		return &v
	}
	return grab("PrimaryCategory"), grab("TemplateName")
}
