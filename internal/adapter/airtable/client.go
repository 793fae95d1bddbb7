// Package airtable implements the CRMClient port against the Airtable
// REST API.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/entity"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Airtable field names on the landing-pages table.
const (
	fieldLandingPage     = "Landing Page"
	fieldChannel         = "Channel"
	fieldTeam            = "Team"
	fieldBrand           = "Brand"
	fieldPrimaryCategory = "Primary Category"
	fieldVertical        = "Vertical"
	fieldPageStatus      = "Page Status"
)

type Client struct {
	httpClient *http.Client
	logger     *zap.Logger

	baseURL string
	apiKey  string
	baseID  string
	table   string
	view    string

	// Hosts whose landing pages are tracked in the CRM but not part of
	// this inventory (partner sites, staging mirrors).
	excludedHosts map[string]struct{}
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithView(view string) Option {
	return func(c *Client) { c.view = view }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithExcludedHosts(hosts []string) Option {
	return func(c *Client) {
		for _, h := range hosts {
			c.excludedHosts[strings.ToLower(h)] = struct{}{}
		}
	}
}

func NewClient(apiKey, baseID, table string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logger,
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		baseID:        baseID,
		table:         table,
		excludedHosts: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset"`
}

type airtableRecord struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// ListRecords pages through the configured view and returns every
// record with a usable landing-page URL. Records pointing at excluded
// hosts are dropped here so callers never see them.
func (c *Client) ListRecords(ctx context.Context) ([]entity.CRMRecord, error) {
	var (
		records []entity.CRMRecord
		offset  string
	)
	for {
		page, err := c.listPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Records {
			rec, ok := c.toRecord(r)
			if !ok {
				continue
			}
			records = append(records, rec)
		}
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

func (c *Client) listPage(ctx context.Context, offset string) (*listResponse, error) {
	params := url.Values{}
	params.Set("pageSize", "100")
	if c.view != "" {
		params.Set("view", c.view)
	}
	if offset != "" {
		params.Set("offset", offset)
	}

	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, c.baseID, url.PathEscape(c.table), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm list request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crm list returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("crm list decode: %w", err)
	}
	return &page, nil
}

// UpdatePageStatus PATCHes a single record's page status.
func (c *Client) UpdatePageStatus(ctx context.Context, recordID, status string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"fields": map[string]string{fieldPageStatus: status},
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(c.table), recordID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm update request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("crm update returned %d for %s: %s", resp.StatusCode, recordID, truncateBody(body))
	}
	return nil
}

func (c *Client) toRecord(r airtableRecord) (entity.CRMRecord, bool) {
	landing := strings.TrimSpace(stringField(r.Fields, fieldLandingPage))
	if landing == "" {
		return entity.CRMRecord{}, false
	}
	if c.isExcluded(landing) {
		c.logger.Debug("crm record on excluded host skipped",
			zap.String("record_id", r.ID),
			zap.String("landing_page", landing))
		return entity.CRMRecord{}, false
	}
	return entity.CRMRecord{
		RecordID:        r.ID,
		LandingPage:     landing,
		Channel:         stringField(r.Fields, fieldChannel),
		Team:            stringField(r.Fields, fieldTeam),
		Brand:           stringField(r.Fields, fieldBrand),
		PrimaryCategory: stringField(r.Fields, fieldPrimaryCategory),
		Vertical:        stringField(r.Fields, fieldVertical),
		PageStatus:      stringField(r.Fields, fieldPageStatus),
	}, true
}

func (c *Client) isExcluded(landing string) bool {
	if len(c.excludedHosts) == 0 {
		return false
	}
	u, err := url.Parse(landing)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	_, excluded := c.excludedHosts[host]
	return excluded
}

// stringField reads an Airtable field that may arrive as a string or a
// single-select array.
func stringField(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func truncateBody(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
