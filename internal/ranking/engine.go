package ranking

import (
	"context"
	"sort"
)

// failedScore sorts demoted records strictly after every scored record
// while keeping them in the ranked list.
const failedScore = -1

// ScoreFunc scores a single record against a fixed reference, returning
// a value in [0, 10]. The reference is bound by the caller so the
// engine stays agnostic of where it comes from.
type ScoreFunc func(ctx context.Context, record Record) (float64, error)

// ScoreFailure records a scoring error for diagnostics. The affected
// record is demoted to the lowest rank tier, not dropped.
type ScoreFailure struct {
	RecordID string
	Company  string
	Err      error
}

// Rank scores every record and orders them by descending score. Ties
// break by discovery order (first seen wins) so repeated runs on the
// same input produce identical rankings. A scoring failure never aborts
// the pass.
func Rank(ctx context.Context, records []Record, score ScoreFunc) ([]RankedRecord, []ScoreFailure) {
	ranked := make([]RankedRecord, 0, len(records))
	var failures []ScoreFailure

	for _, record := range records {
		value, err := score(ctx, record)
		if err != nil {
			failures = append(failures, ScoreFailure{RecordID: record.ID, Company: record.Company, Err: err})
			value = failedScore
		}
		ranked = append(ranked, RankedRecord{Record: record, Score: value})
	}

	sortAndNumber(ranked)

	return ranked, failures
}

// TopK truncates a ranked list to its best k entries. Rank numbers stay
// contiguous because the input is already ordered.
func TopK(ranked []RankedRecord, k int) []RankedRecord {
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

// ExtractCompanies returns the distinct company keys referenced by the
// records, preserving first-seen order.
func ExtractCompanies(records []RankedRecord) []string {
	seen := make(map[string]struct{}, len(records))
	keys := make([]string, 0, len(records))

	for _, record := range records {
		if record.CompanyKey == "" {
			continue
		}
		if _, ok := seen[record.CompanyKey]; ok {
			continue
		}
		seen[record.CompanyKey] = struct{}{}
		keys = append(keys, record.CompanyKey)
	}

	return keys
}

// FilterEntities keeps only entities that satisfy every configured
// threshold. Entities whose source failed are excluded and returned
// separately so the pipeline can report them instead of silently
// passing or failing them.
func FilterEntities(entities []EntityResearch, criteria FilterCriteria) (passed, skipped []EntityResearch) {
	for _, entity := range entities {
		if !entity.SourceSucceeded {
			skipped = append(skipped, entity)
			continue
		}
		if criteria.Satisfied(entity) {
			passed = append(passed, entity)
		}
	}
	return passed, skipped
}

// Satisfied reports whether the entity meets every configured
// threshold. Unconfigured (zero-valued) criteria always pass.
func (c FilterCriteria) Satisfied(entity EntityResearch) bool {
	if c.MinRevenueUSD > 0 && entity.RevenueUSD < c.MinRevenueUSD {
		return false
	}
	if c.MinEmployees > 0 && entity.Employees < c.MinEmployees {
		return false
	}
	if !c.FundedAfter.IsZero() && entity.LastFundingAt.Before(c.FundedAfter) {
		return false
	}
	return true
}

// JoinAndRerank keeps only records whose company key is present in the
// filtered entity set and re-ranks the survivors by a weighted sum of
// the record score and the normalized company growth score. Membership
// is a set lookup, never a per-record scan.
func JoinAndRerank(ranked []RankedRecord, entities []EntityResearch, weights Weights) []RankedRecord {
	byKey := make(map[string]EntityResearch, len(entities))
	for _, entity := range entities {
		byKey[entity.Key] = entity
	}

	joined := make([]RankedRecord, 0, len(ranked))
	for _, record := range ranked {
		entity, ok := byKey[record.CompanyKey]
		if !ok {
			continue
		}

		record.Score = weights.Record*record.Score + weights.Entity*(entity.GrowthScore/10)
		joined = append(joined, record)
	}

	sortAndNumber(joined)

	return joined
}

// sortAndNumber orders by descending score with a stable tie-break on
// input position, then assigns contiguous 1..N ranks.
func sortAndNumber(ranked []RankedRecord) {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
}
