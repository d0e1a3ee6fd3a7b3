package research

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

const (
	defaultTimeout = 20 * time.Second
	contentType    = "application/json"
)

// Client fetches company financial profiles from an enrichment API. The
// pipeline only sees the Researcher capability it implements.
type Client struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

type profileResponse struct {
	Name          string  `json:"name"`
	RevenueUSD    float64 `json:"revenue_usd"`
	Employees     int     `json:"employees"`
	LastFundingAt string  `json:"last_funding_at"`
	GrowthScore   float64 `json:"growth_score"`
}

func New(logger *zap.Logger, apiURL, apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// Research looks up the financial profile for a company key. A provider
// failure surfaces as an error; the caller records it and carries the
// company forward as an unresearched entity.
func (c *Client) Research(ctx context.Context, companyKey string) (*ranking.EntityResearch, error) {
	if companyKey == "" {
		return nil, fmt.Errorf("company key is required")
	}

	profileURL := fmt.Sprintf("%s/companies/profile", c.APIURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("name", companyKey)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", "gzip")

	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("research %q: bad status: %s", companyKey, resp.Status)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	var profile profileResponse
	if err := json.NewDecoder(reader).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile for %q: %w", companyKey, err)
	}

	fundedAt, _ := time.Parse(time.RFC3339, profile.LastFundingAt)

	return &ranking.EntityResearch{
		Key:             companyKey,
		Name:            profile.Name,
		RevenueUSD:      profile.RevenueUSD,
		Employees:       profile.Employees,
		LastFundingAt:   fundedAt,
		GrowthScore:     profile.GrowthScore,
		SourceSucceeded: true,
	}, nil
}
