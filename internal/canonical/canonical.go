// Package canonical implements URL identity for the page inventory: a
// deterministic normalizer that maps URL synonyms onto one comparison
// key, and the content-addressed page id derived from that key. Every
// write path in the service goes through this package, so two observed
// spellings of the same landing page always land on the same page_id.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// trackingParams are query keys that carry campaign attribution, not
// page identity. They are stripped during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"aff_id":       {},
	"aff_sub":      {},
	"subid":        {},
	"sid":          {},
}

var multiSlash = regexp.MustCompile(`/{2,}`)

// Normalize canonicalizes a raw URL into its stable comparison form:
// https scheme by default, lowercased scheme and host, collapsed path
// slashes, no trailing slash (except root), tracking parameters removed,
// fragment dropped. It is idempotent and never fails; input that cannot
// be parsed is cleaned on a best-effort basis and returned.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Best effort: the cleaned string above is already stable under
		// a second pass.
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(u.Host)

	path := multiSlash.ReplaceAllString(u.EscapedPath(), "/")
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	query := filterQuery(u.RawQuery)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// filterQuery drops tracking keys while preserving the remaining pairs
// and their relative order. Pairs are kept as-seen (no re-encoding) so
// the result is stable under repeated normalization.
func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if _, tracked := trackingParams[key]; tracked {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// PageID derives the deterministic identifier grouping all versions of
// one logical page: the SHA-256 hex digest of the normalized URL. No
// salt and no process-local state, so any run on any machine computes
// the same id for the same canonical URL. Hash collisions are an
// accepted risk and are not detected.
func PageID(canonicalURL string) string {
	sum := sha256.Sum256([]byte(Normalize(canonicalURL)))
	return hex.EncodeToString(sum[:])
}

// Keyer memoizes Normalize/PageID through a small LRU. Purely an
// allocation saving for batch runs that see the same URLs repeatedly;
// results are identical to the package-level functions.
type Keyer struct {
	cache *lru.Cache[string, keyed]
}

type keyed struct {
	canonical string
	pageID    string
}

func NewKeyer(size int) (*Keyer, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, keyed](size)
	if err != nil {
		return nil, err
	}
	return &Keyer{cache: c}, nil
}

// Key returns the canonical URL and page id for raw.
func (k *Keyer) Key(raw string) (canonicalURL, pageID string) {
	if hit, ok := k.cache.Get(raw); ok {
		return hit.canonical, hit.pageID
	}
	canonicalURL = Normalize(raw)
	pageID = PageID(canonicalURL)
	k.cache.Add(raw, keyed{canonical: canonicalURL, pageID: pageID})
	return canonicalURL, pageID
}
