package entity

// LocationMainList marks listings that appear in the page's primary
// ranked list; only those contribute position annotations.
const LocationMainList = "main_list"

// Listing is one entry of a page's ranked offer list as reported by the
// extraction model.
type Listing struct {
	BrandName        string `json:"brand_name"`
	ProductName      string `json:"product_name"`
	ProductOfferName string `json:"product_offer_name"`
	Position         string `json:"position"`
	Location         string `json:"location"`
	HasPromotion     bool   `json:"has_promotion"`
}

// BrandRef is a free-standing brand mention outside the listing grid.
type BrandRef struct {
	BrandName string `json:"brand_name"`
}

// ExtractionResult is the validated output of the extraction model for
// one page. It is typed at the adapter boundary so downstream code never
// deals with loosely shaped model output.
type ExtractionResult struct {
	PageType        string     `json:"page_type"`
	HasCoupons      bool       `json:"has_coupons"`
	Listings        []Listing  `json:"listings"`
	Brands          []BrandRef `json:"brands"`
	OtherPromotions []string   `json:"other_promotions"`
}

// MergedSignals is the reconciled, canonical signal set for one page.
type MergedSignals struct {
	HasPromotions    bool
	BrandList        []string
	BrandPositions   *string
	ProductList      []string
	ProductPositions *string
}
