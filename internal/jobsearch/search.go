package jobsearch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

const (
	defaultCountry = "us"
	// Max value allowed by the API for results_per_page.
	perPage = 50
)

// Query describes one job search. Title and Location come straight from
// the user-specified search dimensions.
type Query struct {
	Title      string
	Location   string
	Country    string
	MaxDaysOld int
	FullTime   bool
	SortBy     string
}

// Posting mirrors a single Adzuna search result.
type Posting struct {
	ID          string  `json:"id" mapstructure:"id"`
	Title       string  `json:"title" mapstructure:"title"`
	Description string  `json:"description" mapstructure:"description"`
	Created     string  `json:"created" mapstructure:"created"`
	RedirectURL string  `json:"redirect_url" mapstructure:"redirect_url"`
	SalaryMin   float64 `json:"salary_min" mapstructure:"salary_min"`
	SalaryMax   float64 `json:"salary_max" mapstructure:"salary_max"`
	Company     struct {
		DisplayName string `json:"display_name" mapstructure:"display_name"`
	} `json:"company" mapstructure:"company"`
	Location struct {
		DisplayName string   `json:"display_name" mapstructure:"display_name"`
		Area        []string `json:"area" mapstructure:"area"`
	} `json:"location" mapstructure:"location"`
	ContractTime string `json:"contract_time" mapstructure:"contract_time"`
	Category     struct {
		Tag   string `json:"tag" mapstructure:"tag"`
		Label string `json:"label" mapstructure:"label"`
	} `json:"category" mapstructure:"category"`
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
	Count   int              `json:"count"`
}

// Search runs one search query against the first results page.
func (c *Client) Search(ctx context.Context, query Query) ([]Posting, error) {
	country := strings.ToLower(strings.TrimSpace(query.Country))
	if country == "" {
		country = defaultCountry
	}

	q := url.Values{}
	q.Set("what", query.Title)
	q.Set("where", query.Location)
	q.Set("results_per_page", strconv.Itoa(perPage))
	if query.MaxDaysOld > 0 {
		q.Set("max_days_old", strconv.Itoa(query.MaxDaysOld))
	}
	if query.FullTime {
		q.Set("full_time", "1")
	}
	if query.SortBy != "" {
		q.Set("sort_by", query.SortBy)
	}

	searchURL := fmt.Sprintf("%s/jobs/%s/search/1", c.APIURL, country)

	var response searchResponse
	if err := c.getJSON(ctx, searchURL, q, &response); err != nil {
		return nil, fmt.Errorf("search %q in %q: %w", query.Title, query.Location, err)
	}

	var postings []Posting
	cfg := &mapstructure.DecoderConfig{
		Result:           &postings,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(response.Results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}

	c.logger.Debug("search completed",
		zap.String("title", query.Title),
		zap.String("location", query.Location),
		zap.Int("found", response.Count),
		zap.Int("returned", len(postings)),
	)

	return postings, nil
}

// Normalize flattens the posting into the source-agnostic record shape
// used by the ranking engine.
func (p Posting) Normalize() ranking.Record {
	postedAt, _ := time.Parse(time.RFC3339, p.Created)

	return ranking.Record{
		ID:         p.ID,
		Title:      p.Title,
		Company:    p.Company.DisplayName,
		CompanyKey: CompanyKey(p.Company.DisplayName),
		Location:   p.Location.DisplayName,
		SalaryMin:  p.SalaryMin,
		SalaryMax:  p.SalaryMax,
		PostedAt:   postedAt,
		URL:        p.RedirectURL,
		Summary:    p.Description,
	}
}

// CompanyKey canonicalizes a company display name into the join key
// shared by the ranking engine and the research provider.
func CompanyKey(displayName string) string {
	return strings.ToLower(strings.Join(strings.Fields(displayName), " "))
}
