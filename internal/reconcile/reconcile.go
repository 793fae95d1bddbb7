// Package reconcile merges the signal sources observed for a page (the
// model's listing extraction plus free-standing promotion entries) into
// one canonical flag/list set. It is pure: no storage access, no side
// effects, and it never fails — odd input degrades to empty output.
package reconcile

import (
	"strings"

	"github.com/user/page-inventory/internal/entity"
)

// Merge reduces an extraction result to the canonical signals persisted
// on a page version.
//
// has_promotions is true when any listing carries the promotion flag or
// any free-standing promotion exists. Brand and product lists are
// de-duplicated sets (trimmed, empties dropped, exact-match dedup).
// Position annotations are emitted only for main-list listings that
// have both a name and a position label, joined with "; ".
func Merge(res entity.ExtractionResult) entity.MergedSignals {
	merged := entity.MergedSignals{
		BrandList:   brandNames(res),
		ProductList: productNames(res.Listings),
	}

	for _, li := range res.Listings {
		if li.HasPromotion {
			merged.HasPromotions = true
			break
		}
	}
	if len(res.OtherPromotions) > 0 {
		merged.HasPromotions = true
	}

	merged.BrandPositions = positions(res.Listings, func(li entity.Listing) string {
		return li.BrandName
	})
	merged.ProductPositions = positions(res.Listings, productName)

	return merged
}

// brandNames prefers the dedicated brands array and falls back to the
// listings' brand names. Blank entries are dropped up front so an
// array of empty names does not suppress the fallback.
func brandNames(res entity.ExtractionResult) []string {
	var names []string
	for _, b := range res.Brands {
		if strings.TrimSpace(b.BrandName) == "" {
			continue
		}
		names = append(names, b.BrandName)
	}
	if len(names) == 0 {
		for _, li := range res.Listings {
			names = append(names, li.BrandName)
		}
	}
	return dedupe(names)
}

func productNames(listings []entity.Listing) []string {
	var names []string
	for _, li := range listings {
		names = append(names, productName(li))
	}
	return dedupe(names)
}

// productName falls back to the offer name when the product name is
// blank.
func productName(li entity.Listing) string {
	if strings.TrimSpace(li.ProductName) != "" {
		return li.ProductName
	}
	return li.ProductOfferName
}

// dedupe trims entries, drops empties, and collapses exact duplicates.
// Output order follows first occurrence, but callers treat the result
// as a set.
func dedupe(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// positions builds the "name:position" annotation string for main-list
// listings. Returns nil when no listing qualifies.
func positions(listings []entity.Listing, name func(entity.Listing) string) *string {
	var parts []string
	for _, li := range listings {
		n := strings.TrimSpace(name(li))
		pos := strings.TrimSpace(li.Position)
		loc := strings.TrimSpace(li.Location)
		if n == "" || pos == "" || loc != entity.LocationMainList {
			continue
		}
		parts = append(parts, n+":"+pos)
	}
	if len(parts) == 0 {
		return nil
	}
	joined := strings.Join(parts, "; ")
	return &joined
}
