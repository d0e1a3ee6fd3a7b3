package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ai"
	"github.com/The-Batman-Code/literate-happiness/internal/artifact"
	"github.com/The-Batman-Code/literate-happiness/internal/jobsearch"
	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

const (
	KindSearch   = "search"
	KindRank     = "rank"
	KindResearch = "research"

	defaultTopK         = 20
	defaultMaxCompanies = 10
	defaultResumeName   = "resume"
	reportMIMEType      = "text/markdown"
)

// SearchProvider is the job search capability used by primary fan-out
// workers.
type SearchProvider interface {
	Search(ctx context.Context, query jobsearch.Query) ([]jobsearch.Posting, error)
}

// Researcher is the company research capability used by secondary
// fan-out workers.
type Researcher interface {
	Research(ctx context.Context, companyKey string) (*ranking.EntityResearch, error)
}

// Request describes one pipeline run.
type Request struct {
	SessionID string

	Titles    []string
	Locations []string
	Country   string

	// MaxDaysOld and FullTime narrow every primary search. Zero values
	// leave the provider defaults in place.
	MaxDaysOld int
	FullTime   bool

	Resume     []byte
	ResumeMIME string

	TopK         int
	MaxCompanies int
	Criteria     ranking.FilterCriteria
	Weights      ranking.Weights

	// ReportName, when set, requests a markdown report artifact.
	ReportName string

	Exec Options
	// RankTimeout bounds the whole ranking pass. Zero disables it.
	RankTimeout time.Duration
}

// TaskFailure is one recovered fan-out failure, surfaced only through
// diagnostics.
type TaskFailure struct {
	TaskID string `json:"task_id"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Diagnostics collects everything that went wrong without killing the
// run, plus per-stage record counts.
type Diagnostics struct {
	TaskFailures     []TaskFailure          `json:"task_failures,omitempty"`
	ScoreFailures    []ranking.ScoreFailure `json:"score_failures,omitempty"`
	SkippedCompanies []string               `json:"skipped_companies,omitempty"`
	StageCounts      map[string]int         `json:"stage_counts"`
}

// Result is the caller-visible output. Run returns either a complete
// Result or a single typed error, not a partial success.
type Result struct {
	SessionID   string                 `json:"session_id"`
	Shortlist   []ranking.RankedRecord `json:"shortlist"`
	Artifacts   []artifact.Ref         `json:"artifacts,omitempty"`
	Diagnostics Diagnostics            `json:"diagnostics"`
}

// Orchestrator wires the artifact store, the task factory, the bounded
// executor and the ranking engine into the fixed stage sequence. It
// owns the session's artifact references and every stage's intermediate
// collections; no state survives across runs.
type Orchestrator struct {
	store      artifact.Store
	search     SearchProvider
	researcher Researcher
	scorer     ai.Scorer
	executor   *Executor
	logger     *zap.Logger
}

func NewOrchestrator(store artifact.Store, search SearchProvider, researcher Researcher, scorer ai.Scorer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:      store,
		search:     search,
		researcher: researcher,
		scorer:     scorer,
		executor:   NewExecutor(logger),
		logger:     logger,
	}
}

// Run drives the seven fixed stages. Concurrency exists only inside the
// two fan-out stages; aggregation always happens back in this single
// controlling flow after the fan-in barrier.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := o.validate(&req); err != nil {
		return nil, err
	}

	diag := Diagnostics{StageCounts: make(map[string]int)}

	// Stage 1: persist input side-artifacts.
	var refs []artifact.Ref
	if len(req.Resume) > 0 {
		mime := req.ResumeMIME
		if mime == "" {
			mime = "text/plain"
		}
		refs = append(refs, o.store.Put(req.SessionID, defaultResumeName, req.Resume, mime))
		o.logger.Debug("stored resume artifact", zap.String("session_id", req.SessionID), zap.Int("size", len(req.Resume)))
	}

	// Stage 2: primary fan-out over titles x locations.
	records, err := o.runSearches(ctx, req, &diag)
	if err != nil {
		return nil, err
	}
	diag.StageCounts["normalized"] = len(records)

	// Stage 4: rank against the resume artifact.
	ranked, err := o.rank(ctx, req, records, &diag)
	if err != nil {
		return nil, err
	}

	topRanked := ranking.TopK(ranked, req.TopK)
	diag.StageCounts["top_k"] = len(topRanked)

	// Stage 5: extract companies and run the secondary fan-out.
	entities, err := o.researchCompanies(ctx, req, topRanked, &diag)
	if err != nil {
		return nil, err
	}

	// Stage 6: filter, join back, re-rank.
	passed, skipped := ranking.FilterEntities(entities, req.Criteria)
	for _, entity := range skipped {
		diag.SkippedCompanies = append(diag.SkippedCompanies, entity.Key)
	}
	diag.StageCounts["companies_passed"] = len(passed)

	shortlist := ranking.JoinAndRerank(topRanked, passed, req.Weights)
	diag.StageCounts["shortlist"] = len(shortlist)

	o.logger.Info("pipeline completed",
		zap.String("session_id", req.SessionID),
		zap.Int("shortlist", len(shortlist)),
		zap.Int("task_failures", len(diag.TaskFailures)),
	)

	result := &Result{
		SessionID:   req.SessionID,
		Shortlist:   shortlist,
		Artifacts:   refs,
		Diagnostics: diag,
	}

	// Stage 7: persist the output side-artifact when requested.
	if req.ReportName != "" {
		report := FormatReport(result, req.Criteria)
		ref := o.store.Put(req.SessionID, req.ReportName, []byte(report), reportMIMEType)
		result.Artifacts = append(result.Artifacts, ref)
	}

	return result, nil
}

func (o *Orchestrator) validate(req *Request) error {
	if req.SessionID == "" {
		return &ConfigError{Field: "session_id", Reason: "is required"}
	}
	if len(req.Titles) == 0 || len(req.Locations) == 0 {
		return &ConfigError{Field: "search", Reason: "at least one title and one location are required"}
	}
	if req.Exec.MaxConcurrency <= 0 {
		return &ConfigError{Field: "max_concurrency", Reason: "must be positive"}
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.MaxCompanies <= 0 {
		req.MaxCompanies = defaultMaxCompanies
	}
	if req.Weights == (ranking.Weights{}) {
		req.Weights = ranking.DefaultWeights
	}
	return nil
}

// runSearches covers stages 2 and 3: expand the title x location
// cross-product, execute it under the concurrency bound, then flatten
// and normalize the raw postings.
func (o *Orchestrator) runSearches(ctx context.Context, req Request, diag *Diagnostics) ([]ranking.Record, error) {
	tasks := Expand(KindSearch, DepthNone,
		Dimension{Name: "title", Values: req.Titles},
		Dimension{Name: "location", Values: req.Locations},
	)
	diag.StageCounts["search_tasks"] = len(tasks)

	worker := func(ctx context.Context, task TaskDescriptor) (any, error) {
		return o.search.Search(ctx, jobsearch.Query{
			Title:      task.Payload["title"],
			Location:   task.Payload["location"],
			Country:    req.Country,
			MaxDaysOld: req.MaxDaysOld,
			FullTime:   req.FullTime,
		})
	}

	results, err := o.executor.Run(ctx, tasks, worker, req.Exec)
	if err != nil {
		return nil, err
	}

	var records []ranking.Record
	usable := 0
	for _, result := range results {
		if !result.Ok() {
			diag.TaskFailures = append(diag.TaskFailures, TaskFailure{
				TaskID: result.TaskID,
				Kind:   KindSearch,
				Reason: result.Err.Error(),
			})
			continue
		}
		usable++

		postings, ok := result.Value.([]jobsearch.Posting)
		if !ok {
			continue
		}
		for _, posting := range postings {
			records = append(records, posting.Normalize())
		}
	}

	if usable == 0 || len(records) == 0 {
		return nil, stageFailure(KindSearch, ErrEmptyResult)
	}

	return records, nil
}

type rankOutcome struct {
	ranked   []ranking.RankedRecord
	failures []ranking.ScoreFailure
}

// rank fetches the resume side-artifact and scores every normalized
// record against it. The whole pass runs as a single deep-reasoning
// task through the executor so it shares the timeout semantics of the
// fan-out stages.
func (o *Orchestrator) rank(ctx context.Context, req Request, records []ranking.Record, diag *Diagnostics) ([]ranking.RankedRecord, error) {
	resume, err := o.store.Get(req.SessionID, defaultResumeName)
	if err != nil {
		return nil, stageFailure(KindRank, err)
	}
	reference := string(resume.Bytes)

	score := func(ctx context.Context, record ranking.Record) (float64, error) {
		fit, err := o.scorer.Score(ctx, record, reference)
		if err != nil {
			return 0, err
		}
		return fit.Score, nil
	}

	task := TaskDescriptor{
		ID:      canonicalID(KindRank, map[string]string{"session": req.SessionID}),
		Kind:    KindRank,
		Payload: map[string]string{"session": req.SessionID},
		Depth:   DepthDeep,
	}

	worker := func(ctx context.Context, _ TaskDescriptor) (any, error) {
		ranked, failures := ranking.Rank(ctx, records, score)
		return rankOutcome{ranked: ranked, failures: failures}, nil
	}

	opts := Options{MaxConcurrency: 1, PerTaskTimeout: req.RankTimeout, GracePeriod: req.Exec.GracePeriod}
	results, err := o.executor.Run(ctx, []TaskDescriptor{task}, worker, opts)
	if err != nil {
		return nil, err
	}
	if !results[0].Ok() {
		return nil, stageFailure(KindRank, results[0].Err)
	}

	outcome, ok := results[0].Value.(rankOutcome)
	if !ok {
		return nil, stageFailure(KindRank, fmt.Errorf("unexpected rank result type %T", results[0].Value))
	}

	diag.ScoreFailures = append(diag.ScoreFailures, outcome.failures...)

	return outcome.ranked, nil
}

// researchCompanies covers stage 5: derive the distinct companies from
// the top-K records, cap the fan-out, and fetch a financial profile per
// company. A failed lookup becomes an entity with SourceSucceeded=false
// so the filter stage can report it as skipped instead of silently
// deciding for it.
func (o *Orchestrator) researchCompanies(ctx context.Context, req Request, topRanked []ranking.RankedRecord, diag *Diagnostics) ([]ranking.EntityResearch, error) {
	companies := ranking.ExtractCompanies(topRanked)
	diag.StageCounts["companies_extracted"] = len(companies)

	tasks := ExpandCapped(KindResearch, DepthShallow,
		Dimension{Name: "company", Values: companies},
		req.MaxCompanies,
	)
	diag.StageCounts["research_tasks"] = len(tasks)

	worker := func(ctx context.Context, task TaskDescriptor) (any, error) {
		return o.researcher.Research(ctx, task.Payload["company"])
	}

	results, err := o.executor.Run(ctx, tasks, worker, req.Exec)
	if err != nil {
		return nil, err
	}

	entities := make([]ranking.EntityResearch, 0, len(results))
	usable := 0
	for i, result := range results {
		if !result.Ok() {
			diag.TaskFailures = append(diag.TaskFailures, TaskFailure{
				TaskID: result.TaskID,
				Kind:   KindResearch,
				Reason: result.Err.Error(),
			})
			entities = append(entities, ranking.EntityResearch{
				Key:             tasks[i].Payload["company"],
				SourceSucceeded: false,
			})
			continue
		}

		entity, ok := result.Value.(*ranking.EntityResearch)
		if !ok || entity == nil {
			diag.TaskFailures = append(diag.TaskFailures, TaskFailure{
				TaskID: result.TaskID,
				Kind:   KindResearch,
				Reason: fmt.Sprintf("unexpected research result type %T", result.Value),
			})
			entities = append(entities, ranking.EntityResearch{
				Key:             tasks[i].Payload["company"],
				SourceSucceeded: false,
			})
			continue
		}
		usable++
		entities = append(entities, *entity)
	}

	if len(tasks) > 0 && usable == 0 {
		return nil, stageFailure(KindResearch, ErrEmptyResult)
	}

	return entities, nil
}
