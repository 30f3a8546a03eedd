package whois

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
)

// maxPayload bounds the registration payload read from the service
const maxPayload = 1 << 20

// Client implements ports.WhoisFetcher against the WHOIS microservice (GET /{domain})
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new WHOIS service client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch returns the raw registration JSON for a domain
func (c *Client) Fetch(ctx context.Context, rootDomain string) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(rootDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", domain.ErrWhoisUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWhoisUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d for %s", domain.ErrWhoisUnavailable, resp.StatusCode, rootDomain)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrWhoisUnavailable, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: response for %s is not JSON", domain.ErrWhoisUnavailable, rootDomain)
	}

	c.logger.Debug("Fetched WHOIS data", zap.String("domain", rootDomain), zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}
