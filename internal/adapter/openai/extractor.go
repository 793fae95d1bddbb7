// Package openai implements the Extractor port on the OpenAI
// chat-completions API. The model reads the page (text, plus the
// screenshot when one is available) and reports listings, brands and
// promotion signals as JSON.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/page-inventory/internal/entity"
	"github.com/user/page-inventory/internal/repository"
)

const (
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel    = "gpt-4o"

	// Page text beyond this is noise for the model and burns tokens.
	maxContentChars = 60000
)

const systemPrompt = `You analyse marketing landing pages for an inventory system.
Given a page's URL and text content (and a screenshot when provided), respond with a single JSON object:
{
  "page_type": "listicle" | "review" | "comparison" | "coupon" | "other",
  "has_coupons": bool,
  "listings": [{"brand_name": "", "product_name": "", "product_offer_name": "", "position": "1", "location": "main_list", "has_promotion": false}],
  "brands": [{"brand_name": ""}],
  "other_promotions": ["free shipping over $50"]
}
Use location "main_list" only for entries of the page's primary ranked list. Positions are strings. Respond with JSON only.`

type Extractor struct {
	httpClient *http.Client
	logger     *zap.Logger
	endpoint   string
	apiKey     string
	model      string
}

type Option func(*Extractor)

func WithEndpoint(endpoint string) Option {
	return func(e *Extractor) { e.endpoint = endpoint }
}

func WithModel(model string) Option {
	return func(e *Extractor) { e.model = model }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(e *Extractor) { e.httpClient = hc }
}

func NewExtractor(apiKey string, logger *zap.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		model:      defaultModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat formatSpec    `json:"response_format"`
	Temperature    float64       `json:"temperature"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Extract runs the model over one page. Any transport, API or shape
// failure wraps repository.ErrExtractionFailed so callers skip
// persistence for the URL.
func (e *Extractor) Extract(ctx context.Context, url, html string, screenshot []byte) (*entity.ExtractionResult, error) {
	content := []contentPart{{
		Type: "text",
		Text: fmt.Sprintf("URL: %s\n\nPage content:\n%s", url, truncate(html, maxContentChars)),
	}}
	if len(screenshot) > 0 {
		content = append(content, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(screenshot),
			},
		})
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: content},
		},
		ResponseFormat: formatSpec{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("extraction api error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: api status %d", repository.ErrExtractionFailed, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrExtractionFailed, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", repository.ErrExtractionFailed)
	}

	result, err := parseResult(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}
	return result, nil
}

// parseResult decodes and validates the model's JSON. Listings outside
// the known location vocabulary are kept but normalized lowercase so
// the reconciler's main-list check stays exact.
func parseResult(content string) (*entity.ExtractionResult, error) {
	content = strings.TrimSpace(content)
	// Models occasionally wrap JSON in a code fence despite json mode.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result entity.ExtractionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("malformed extraction json: %v", err)
	}
	if result.PageType == "" {
		return nil, fmt.Errorf("extraction missing page_type")
	}
	for i := range result.Listings {
		result.Listings[i].Location = strings.ToLower(strings.TrimSpace(result.Listings[i].Location))
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
