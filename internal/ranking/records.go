package ranking

import "time"

// Record is a flattened, source-agnostic job listing. It carries no
// affinity to the search task that produced it.
type Record struct {
	ID         string    `json:"id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	CompanyKey string    `json:"company_key,omitempty"`
	Location   string    `json:"location,omitempty"`
	SalaryMin  float64   `json:"salary_min,omitempty"`
	SalaryMax  float64   `json:"salary_max,omitempty"`
	PostedAt   time.Time `json:"posted_at,omitempty"`
	URL        string    `json:"url,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

// RankedRecord is a Record with its fit score and position. Ranks are
// always a contiguous 1..N sequence over the surviving records.
type RankedRecord struct {
	Record
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// EntityResearch is a company financial profile produced by the
// secondary fan-out.
type EntityResearch struct {
	Key             string    `json:"key"`
	Name            string    `json:"name,omitempty"`
	RevenueUSD      float64   `json:"revenue_usd,omitempty"`
	Employees       int       `json:"employees,omitempty"`
	LastFundingAt   time.Time `json:"last_funding_at,omitempty"`
	GrowthScore     float64   `json:"growth_score,omitempty"`
	SourceSucceeded bool      `json:"source_succeeded"`
}

// FilterCriteria holds the company thresholds supplied once per run.
// Zero values mean the corresponding criterion is not configured.
type FilterCriteria struct {
	MinRevenueUSD float64
	MinEmployees  int
	FundedAfter   time.Time
}

// Weights controls the combined score used when re-ranking the joined
// shortlist.
type Weights struct {
	Record float64
	Entity float64
}

// DefaultWeights favours the resume fit score over company quality.
var DefaultWeights = Weights{Record: 0.7, Entity: 0.3}
