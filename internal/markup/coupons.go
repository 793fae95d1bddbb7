package markup

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	couponMarkers = []string{
		"coupon code",
		"promo code",
		"promotional code",
		"bonus code",
		"discount code",
		"voucher code",
		"use code",
		"enter code",
	}

	// A code is the token following one of the markers: letters and
	// digits, mixed case allowed but at least four characters.
	couponCode = regexp.MustCompile(`(?i)(?:coupon|promo|promotional|bonus|discount|voucher|use|enter)\s+code[:\s"']+([A-Za-z0-9]{4,15})\b`)

	phoneLike = regexp.MustCompile(`^\d{7,}$`)
	dateLike  = regexp.MustCompile(`(?i)^\d{1,2}(?:st|nd|rd|th)$|^20\d{2}$`)

	codeStopwords = map[string]struct{}{
		"when": {}, "with": {}, "here": {}, "this": {}, "your": {},
		"will": {}, "that": {}, "from": {}, "required": {}, "needed": {},
	}
)

// DetectCoupons scans visible page text for coupon language. A page
// counts as having coupons when a marker phrase appears; codes are the
// tokens that follow a marker, filtered of phone numbers, dates and
// filler words the pattern tends to swallow.
func DetectCoupons(html string) (hasCoupons bool, codes []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, nil
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if text == "" {
		text = html
	}
	lower := strings.ToLower(text)

	for _, marker := range couponMarkers {
		if strings.Contains(lower, marker) {
			hasCoupons = true
			break
		}
	}
	if !hasCoupons {
		return false, nil
	}

	seen := make(map[string]struct{})
	for _, m := range couponCode.FindAllStringSubmatch(text, -1) {
		code := m[1]
		if phoneLike.MatchString(code) || dateLike.MatchString(code) {
			continue
		}
		if _, stop := codeStopwords[strings.ToLower(code)]; stop {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return true, codes
}
