package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

// threatTypes is the fixed matrix queried for every batch
var threatTypes = []string{
	domain.ThreatMalware,
	domain.ThreatSocialEngineering,
	domain.ThreatUnwantedSoftware,
	domain.ThreatPotentiallyHarmfulApplication,
}

// Config holds the client identity and endpoint
type Config struct {
	APIKey        string
	Endpoint      string
	ClientID      string
	ClientVersion string
	Timeout       time.Duration
}

// Client implements ports.ThreatChecker against the Safe Browsing v4 Lookup API
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Safe Browsing client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatEntry struct {
	URL string `json:"url"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []threatEntry `json:"threatEntries"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type threatMatch struct {
	ThreatType string      `json:"threatType"`
	Threat     threatEntry `json:"threat"`
}

type findResponse struct {
	Matches []threatMatch `json:"matches"`
}

// Check queries all distinct URLs in one request.
// Upstream failures are logged and returned as an all-clean result with Failed set.
func (c *Client) Check(ctx context.Context, urls []string) (ports.ThreatCheck, error) {
	if c.cfg.APIKey == "" {
		return ports.ThreatCheck{}, domain.ErrThreatAPINotConfigured
	}

	unique := dedupe(urls)
	result := ports.ThreatCheck{Verdicts: make([]ports.ThreatVerdict, len(unique))}
	for i, u := range unique {
		result.Verdicts[i] = ports.ThreatVerdict{URL: u}
	}
	if len(unique) == 0 {
		return result, nil
	}

	matches, err := c.find(ctx, unique)
	if err != nil {
		c.logger.Error("Threat check failed, treating URLs as unchecked",
			zap.Int("url_count", len(unique)), zap.Error(err))
		result.Failed = true
		return result, nil
	}

	// Keep the first category reported for a URL
	byURL := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, seen := byURL[m.Threat.URL]; !seen {
			byURL[m.Threat.URL] = m.ThreatType
		}
	}
	for i := range result.Verdicts {
		if threat, ok := byURL[result.Verdicts[i].URL]; ok {
			result.Verdicts[i].Suspicious = true
			result.Verdicts[i].ThreatType = threat
		}
	}

	c.logger.Debug("Threat check completed",
		zap.Int("url_count", len(unique)), zap.Int("match_count", len(byURL)))
	return result, nil
}

func (c *Client) find(ctx context.Context, urls []string) ([]threatMatch, error) {
	entries := make([]threatEntry, len(urls))
	for i, u := range urls {
		entries[i] = threatEntry{URL: u}
	}

	body, err := json.Marshal(findRequest{
		Client: clientInfo{ClientID: c.cfg.ClientID, ClientVersion: c.cfg.ClientVersion},
		ThreatInfo: threatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    entries,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.cfg.Endpoint + "?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded findResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return decoded.Matches, nil
}

func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok || u == "" {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
