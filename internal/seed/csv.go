// Package seed loads URL lists from operator-supplied CSV files. The
// URL column is found by header name first and by sniffing cell
// contents when headers are unhelpful.
package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/user/page-inventory/internal/canonical"
)

var urlHeaderNames = map[string]struct{}{
	"url":          {},
	"urls":         {},
	"landing page": {},
	"landing_page": {},
	"page":         {},
	"link":         {},
}

// ReadURLs parses a CSV stream and returns the normalized, de-duplicated
// URLs of its URL column.
func ReadURLs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	col, skipHeader := urlColumn(records)
	if col < 0 {
		return nil, fmt.Errorf("no url column found")
	}

	rows := records
	if skipHeader {
		rows = rows[1:]
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if !looksLikeURL(cell) {
			continue
		}
		normalized := canonical.Normalize(cell)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("url column %d contains no urls", col)
	}
	return urls, nil
}

// ReadURLsFile is ReadURLs over a file path.
func ReadURLsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadURLs(f)
}

// urlColumn picks the URL column: a recognized header name wins, then
// the first column whose first data row looks like a URL. The second
// return reports whether row 0 is a header to skip.
func urlColumn(records [][]string) (int, bool) {
	header := records[0]
	for i, name := range header {
		if _, ok := urlHeaderNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			return i, true
		}
	}

	// Headerless or unrecognized header: sniff the first data-looking row.
	for _, row := range records {
		for i, cell := range row {
			if looksLikeURL(strings.TrimSpace(cell)) {
				headerIsData := looksLikeURL(strings.TrimSpace(header[min(i, len(header)-1)]))
				return i, !headerIsData
			}
		}
	}
	return -1, false
}

func looksLikeURL(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return true
	}
	return strings.Contains(s, ".") && strings.Contains(s, "/") && !strings.ContainsAny(s, " \t")
}
