package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/The-Batman-Code/literate-happiness/internal/ai"
	"github.com/The-Batman-Code/literate-happiness/internal/ai/gemini"
	"github.com/The-Batman-Code/literate-happiness/internal/artifact"
	"github.com/The-Batman-Code/literate-happiness/internal/jobsearch"
	"github.com/The-Batman-Code/literate-happiness/internal/logger"
	"github.com/The-Batman-Code/literate-happiness/internal/pipeline"
	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
	"github.com/The-Batman-Code/literate-happiness/internal/research"
	"github.com/The-Batman-Code/literate-happiness/internal/secrets"
)

const (
	PromptShowShortlist   = "Show shortlist"
	PromptShortlistToFile = "Dump shortlist to file"
	PromptSaveReport      = "Save report to file"
	PromptShowDiagnostics = "Show diagnostics"
	PromptExit            = "Exit"
	defaultReportArtifact = "report.md"
	defaultReportFile     = "job-research-report.md"
	defaultMaxLogLength   = 200
	fundedAfterLayout     = "2006-01-02"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowShortlist, PromptSaveReport, PromptShortlistToFile, PromptShowDiagnostics, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the job research pipeline",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-aprove", "y", false, "save the report and exit without prompting")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-researcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.Search == nil || len(config.Search.Titles) == 0 || len(config.Search.Locations) == 0 {
		logger.Fatal("at least one title and one location are required under the search section")
	}

	if config.ResumeFile == "" {
		logger.Fatal("resume-file is required to rank openings against the resume")
	}

	resume, err := os.ReadFile(config.ResumeFile)
	if err != nil {
		logger.Fatal("reading resume file", zap.Error(err), zap.String("path", config.ResumeFile))
	}

	searcher, err := buildSearcher(config, logger)
	if err != nil {
		logger.Fatal("building the job search client", zap.Error(err))
	}

	researcher, err := buildResearcher(config, logger)
	if err != nil {
		logger.Fatal("building the company research client", zap.Error(err))
	}

	scorer, err := buildScorer(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the ai scorer", zap.Error(err))
	}

	store := artifact.NewMemoryStore()
	orchestrator := pipeline.NewOrchestrator(store, searcher, researcher, scorer, logger)

	request := buildRequest(config, resume, logger)

	logger.Info("starting the search",
		zap.Strings("titles", config.Search.Titles),
		zap.Strings("locations", config.Search.Locations),
	)

	result, err := orchestrator.Run(ctx, request)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	logger.Info("pipeline finished",
		zap.Int("shortlist", len(result.Shortlist)),
		zap.Int("skipped_companies", len(result.Diagnostics.SkippedCompanies)),
		zap.Int("task_failures", len(result.Diagnostics.TaskFailures)),
	)

	if cmd.Flag("auto-aprove").Value.String() == "true" {
		if err := saveReport(store, result, reportFilePath(config), logger); err != nil {
			logger.Fatal("saving report", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, store, result, config, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, store artifact.Store, result *pipeline.Result, config *Config, logger *zap.Logger) error {
	switch action {
	case PromptShowShortlist:
		pretty, _ := json.MarshalIndent(result.Shortlist, "", "  ")
		logger.Info(string(pretty), zap.Int("shortlist count", len(result.Shortlist)))
		return nil
	case PromptSaveReport:
		return saveReport(store, result, reportFilePath(config), logger)
	case PromptShortlistToFile:
		file, err := os.CreateTemp("", "shortlist_*.json")
		if err != nil {
			return fmt.Errorf("dump shortlist to file: %w", err)
		}
		defer file.Close()

		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Shortlist); err != nil {
			return fmt.Errorf("dump shortlist to file: %w", err)
		}
		logger.Info("dumping shortlist to file", zap.String("filename", file.Name()))
		return nil
	case PromptShowDiagnostics:
		pretty, _ := json.MarshalIndent(result.Diagnostics, "", "  ")
		logger.Info(string(pretty))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func saveReport(store artifact.Store, result *pipeline.Result, path string, logger *zap.Logger) error {
	report, err := store.Get(result.SessionID, defaultReportArtifact)
	if err != nil {
		return fmt.Errorf("loading report artifact: %w", err)
	}

	if err := os.WriteFile(path, report.Bytes, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	logger.Info("report saved", zap.String("filename", path))
	return nil
}

func reportFilePath(config *Config) string {
	if config.ReportFile != "" {
		return config.ReportFile
	}
	return defaultReportFile
}

func buildRequest(config *Config, resume []byte, logger *zap.Logger) pipeline.Request {
	request := pipeline.Request{
		SessionID:  uuid.NewString(),
		Titles:     config.Search.Titles,
		Locations:  config.Search.Locations,
		Country:    config.Search.Country,
		MaxDaysOld: config.Search.MaxDaysOld,
		FullTime:   config.Search.FullTime,
		Resume:     resume,
		ReportName: defaultReportArtifact,
		Exec: pipeline.Options{
			MaxConcurrency: 8,
		},
	}

	if config.Rank != nil {
		request.TopK = config.Rank.TopK
		request.RankTimeout = config.Rank.Timeout
	}

	if config.Research != nil {
		request.MaxCompanies = config.Research.MaxCompanies
	}

	if config.Concurrency != nil {
		if config.Concurrency.MaxWorkers > 0 {
			request.Exec.MaxConcurrency = config.Concurrency.MaxWorkers
		}
		request.Exec.PerTaskTimeout = config.Concurrency.TaskTimeout
		request.Exec.GracePeriod = config.Concurrency.GracePeriod
	}

	if config.Filters != nil {
		request.Criteria = ranking.FilterCriteria{
			MinRevenueUSD: config.Filters.MinRevenueUSD,
			MinEmployees:  config.Filters.MinEmployees,
		}
		if config.Filters.FundedAfter != "" {
			fundedAfter, err := time.Parse(fundedAfterLayout, config.Filters.FundedAfter)
			if err != nil {
				logger.Fatal("parsing filters.funded-after",
					zap.Error(err),
					zap.String("hint", "expected YYYY-MM-DD"),
				)
			}
			request.Criteria.FundedAfter = fundedAfter
		}
	}

	return request
}

func buildSearcher(config *Config, logger *zap.Logger) (*jobsearch.Client, error) {
	if config.Adzuna == nil || config.Adzuna.AppID == "" {
		return nil, errors.New("adzuna app-id is required under the adzuna section")
	}

	appKey, err := secrets.Load(secrets.Source{
		Name: "adzuna app key",
		File: config.Adzuna.AppKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set adzuna.app-key-file or ADZUNA_APP_KEY_FILE)", err)
	}

	client := jobsearch.New(logger, config.Adzuna.AppID, appKey)
	if config.Adzuna.APIURL != "" {
		client.APIURL = config.Adzuna.APIURL
	}

	return client, nil
}

func buildResearcher(config *Config, logger *zap.Logger) (*research.Client, error) {
	if config.Research == nil || config.Research.APIURL == "" {
		return nil, errors.New("research api-url is required under the research section")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "research api key",
		File: config.Research.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set research.api-key-file or RESEARCH_API_KEY_FILE)", err)
	}

	return research.New(logger, config.Research.APIURL, apiKey), nil
}

func buildScorer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Scorer, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required under the ai section")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	scorerLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	maxLogLength := cfg.Gemini.MaxLogLength
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return gemini.NewScorer(generator, scorerLogger, maxLogLength), nil
}
