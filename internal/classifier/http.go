// internal/classifier/http.go
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
	"circlepool/internal/util"
)

// HTTPClient talks to a text-generation endpoint over HTTP. The endpoint
// contract is minimal: POST {"prompt": "..."} with an API key header,
// receive {"text": "..."}.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient substitutes the underlying http.Client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

// NewHTTPClient creates a classifier client for the given endpoint and key.
func NewHTTPClient(endpoint, apiKey string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Classify labels one expense by asking the model for a single word verdict.
// An answer containing neither verdict is reported as Unclassified with a
// nil error; transport and server failures surface as errors for the caller
// to log.
func (h *HTTPClient) Classify(ctx context.Context, in ExpenseInput) (domain.Productivity, error) {
	prompt := fmt.Sprintf(`Analyze the following expense details and classify it strictly as either "Productive" or "Non-Productive".
Productive expenses generally contribute to essential needs, growth, or investment (e.g., rent, utilities, groceries, education, essential transport, health).
Non-Productive expenses are often discretionary or non-essential (e.g., entertainment, luxury shopping, non-essential dining out, non-essential travel).

Category: %q
Description: %q
Amount: %s
Return ONLY the single word "Productive" or "Non-Productive":`, in.Category, in.Description, in.Amount)

	text, err := h.generate(ctx, prompt)
	if err != nil {
		return domain.ProductivityUnclassified, err
	}

	// Substring checks are deliberately loose; models pad their answers.
	clean := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(clean, "non-productive"):
		return domain.ProductivityNonProductive, nil
	case strings.Contains(clean, "productive"):
		return domain.ProductivityProductive, nil
	default:
		return domain.ProductivityUnclassified, nil
	}
}

// Insights asks the model for a short numbered list of spending tips and
// returns the individual lines.
func (h *HTTPClient) Insights(ctx context.Context, summaries []string, totalSpent decimal.Decimal) ([]string, error) {
	prompt := fmt.Sprintf(`Based on the following recent transaction summaries, give three short actionable savings insights.
Total spent recently: %s. Recent transactions include: %s.

Insights (provide only the numbered list):
1. ...
2. ...
3. ...`, totalSpent.StringFixed(2), strings.Join(summaries, ", "))

	text, err := h.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var insights []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789.) ")
		if line != "" && len(line) < 500 {
			insights = append(insights, line)
		}
	}
	return insights, nil
}

func (h *HTTPClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier: %w: %v", util.ErrClassificationUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", util.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("classifier: %w: unexpected status %d", util.ErrClassificationUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("classifier: read response: %w", err)
	}
	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("classifier: decode response: %w", err)
	}
	return out.Text, nil
}
