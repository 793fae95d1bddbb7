package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/page-inventory/internal/entity"
)

func TestExtractCanonical(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		fallback string
		want     string
	}{
		{
			name:     "canonical link wins",
			html:     `<html><head><link rel="canonical" href="https://Example.com/best-deals/"></head></html>`,
			fallback: "https://example.com/best-deals?utm_source=x",
			want:     "https://example.com/best-deals",
		},
		{
			name:     "missing link falls back to fetched url",
			html:     `<html><head></head><body></body></html>`,
			fallback: "https://example.com/page?gclid=abc",
			want:     "https://example.com/page",
		},
		{
			name:     "empty href falls back",
			html:     `<link rel="canonical" href="">`,
			fallback: "https://example.com/a//b/",
			want:     "https://example.com/a/b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCanonical(tt.html, tt.fallback))
		})
	}
}

func TestExtractPageMeta(t *testing.T) {
	html := `<script id="pageLevelData" type="application/json">
		{"PrimaryCategory": "Fashion", "TemplateName": "commerce-listicle"}
	</script>`

	cat, tmpl := ExtractPageMeta(html)
	if assert.NotNil(t, cat) {
		assert.Equal(t, "Fashion", *cat)
	}
	if assert.NotNil(t, tmpl) {
		assert.Equal(t, "commerce-listicle", *tmpl)
	}

	cat, tmpl = ExtractPageMeta(`<body>no script here</body>`)
	assert.Nil(t, cat)
	assert.Nil(t, tmpl)
}

func TestDetectCoupons(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantHas   bool
		wantCodes []string
	}{
		{
			name:      "marker with code",
			html:      `<body><p>Use promo code SAVE20 at checkout.</p></body>`,
			wantHas:   true,
			wantCodes: []string{"SAVE20"},
		},
		{
			name:    "marker without usable code",
			html:    `<body><p>Enter code when prompted.</p></body>`,
			wantHas: true,
		},
		{
			name:    "phone number excluded",
			html:    `<body><p>Call with bonus code 08001234567 today.</p></body>`,
			wantHas: true,
		},
		{
			name:    "year excluded",
			html:    `<body><p>discount code 2026 expires soon</p></body>`,
			wantHas: true,
		},
		{
			name:    "no coupon language",
			html:    `<body><p>A list of the best laptops this year.</p></body>`,
			wantHas: false,
		},
		{
			name:    "marker only inside script ignored",
			html:    `<body><script>var s = "promo code HIDDEN1";</script><p>hello</p></body>`,
			wantHas: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			has, codes := DetectCoupons(tt.html)
			assert.Equal(t, tt.wantHas, has)
			assert.Equal(t, tt.wantCodes, codes)
		})
	}
}

func TestExtractAffiliateListings(t *testing.T) {
	html := `<body>
		<li><a href="https://go.redirectingat.com/?url=https%3A%2F%2Fwww.nike.com%2Fair">Nike Air</a> 20% off today</li>
		<li><a href="https://click.linksynergy.com/deeplink?murl=https%3A%2F%2Fwww.asos.com%2F">Asos</a></li>
		<li><a href="https://go.redirectingat.com/?url=https%3A%2F%2Fwww.nike.com%2Fother">Nike again</a></li>
		<p><a href="https://example.com/editorial">not affiliate</a></p>
	</body>`

	got := ExtractAffiliateListings(html)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "Nike", got[0].BrandName)
		assert.Equal(t, "1", got[0].Position)
		assert.Equal(t, entity.LocationMainList, got[0].Location)
		assert.True(t, got[0].HasPromotion)

		assert.Equal(t, "Asos", got[1].BrandName)
		assert.Equal(t, "2", got[1].Position)
		assert.False(t, got[1].HasPromotion)
	}
}

func TestBrandFromHost(t *testing.T) {
	assert.Equal(t, "Nike", brandFromHost("www.nike.com"))
	assert.Equal(t, "Argos", brandFromHost("www.argos.co.uk"))
	assert.Equal(t, "", brandFromHost("localhost"))
}

func TestVerticalFor(t *testing.T) {
	cat := "Fashion"
	if v := VerticalFor(&cat); assert.NotNil(t, v) {
		assert.Equal(t, "Shopping", *v)
	}
	unknown := "knitting"
	assert.Nil(t, VerticalFor(&unknown))
	assert.Nil(t, VerticalFor(nil))
}
