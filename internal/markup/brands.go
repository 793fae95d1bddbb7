package markup

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/page-inventory/internal/entity"
)

// Tracking networks whose outbound links carry the merchant in a query
// parameter rather than the host.
var affiliateHosts = map[string]struct{}{
	"go.redirectingat.com":  {},
	"go.skimresources.com":  {},
	"click.linksynergy.com": {},
	"prf.hn":                {},
	"www.awin1.com":         {},
	"imp.i358889.net":       {},
	"goto.target.com":       {},
}

// Query parameters that hold the real destination on tracking links,
// in lookup order.
var destParams = []string{"url", "murl", "dest", "destination", "u"}

var promoWords = []string{"% off", "sale", "deal", "save ", "free shipping", "discount"}

// ExtractAffiliateListings walks outbound affiliate links in document
// order and returns them as main-list entries, one per distinct brand,
// with 1-based positions. Promotion flags come from the text of the
// element hosting the link.
func ExtractAffiliateListings(html string) []entity.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var (
		listings []entity.Listing
		seen     = make(map[string]struct{})
	)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		brand := brandFromLink(href)
		if brand == "" {
			return
		}
		key := strings.ToLower(brand)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		listings = append(listings, entity.Listing{
			BrandName:    brand,
			Position:     strconv.Itoa(len(listings) + 1),
			Location:     entity.LocationMainList,
			HasPromotion: hasPromoText(a),
		})
	})
	return listings
}

// brandFromLink resolves a merchant name from an affiliate href, or ""
// when the link is not an affiliate link.
func brandFromLink(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if _, ok := affiliateHosts[host]; !ok {
		return ""
	}
	q := u.Query()
	for _, p := range destParams {
		if dest := q.Get(p); dest != "" {
			if du, err := url.Parse(dest); err == nil && du.Host != "" {
				return brandFromHost(du.Host)
			}
			// Some networks pass a bare domain.
			if strings.Contains(dest, ".") && !strings.Contains(dest, "/") {
				return brandFromHost(dest)
			}
		}
	}
	return ""
}

// brandFromHost turns "www.shop.example.co.uk" into "Example".
func brandFromHost(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	name := parts[len(parts)-2]
	// Handle two-part public suffixes like co.uk.
	if len(parts) >= 3 && len(name) <= 2 {
		name = parts[len(parts)-3]
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func hasPromoText(a *goquery.Selection) bool {
	scope := a.Closest("li, article, section, div")
	text := strings.ToLower(scope.Text())
	for _, w := range promoWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
