package jobsearch

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
)

const (
	apiURL    = "https://api.adzuna.com/v1/api"
	userAgent = "literate-happiness/job-researcher"

	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// Client talks to the Adzuna job search API v1. Authentication is
// query-parameter based (app_id/app_key).
type Client struct {
	appID      string
	appKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

func New(logger *zap.Logger, appID, appKey string) *Client {
	return &Client{
		appID:  appID,
		appKey: appKey,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// getJSON makes an authenticated GET request and decodes the JSON body
// into target, transparently handling gzip-encoded responses.
func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	req.URL.RawQuery = q.Encode()

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	c.logger.Debug("make request", zap.String("url", req.URL.Redacted()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return fmt.Errorf("invalid adzuna credentials: %s", resp.Status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("adzuna rate limit exceeded: %s", resp.Status)
	default:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}
