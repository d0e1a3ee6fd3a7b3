package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "job-researcher"
)

type Config struct {
	Search      *SearchConfig      `mapstructure:"search"`
	Rank        *RankConfig        `mapstructure:"rank"`
	Research    *ResearchConfig    `mapstructure:"research"`
	Filters     *FiltersConfig     `mapstructure:"filters"`
	Concurrency *ConcurrencyConfig `mapstructure:"concurrency"`
	AI          *AIConfig          `mapstructure:"ai"`
	Adzuna      *AdzunaConfig      `mapstructure:"adzuna"`
	ResumeFile  string             `mapstructure:"resume-file"`
	ReportFile  string             `mapstructure:"report-file"`
}

type SearchConfig struct {
	Titles     []string `mapstructure:"titles"`
	Locations  []string `mapstructure:"locations"`
	Country    string   `mapstructure:"country"`
	MaxDaysOld int      `mapstructure:"max-days-old"`
	FullTime   bool     `mapstructure:"full-time"`
}

type RankConfig struct {
	TopK    int           `mapstructure:"top-k"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ResearchConfig struct {
	MaxCompanies int    `mapstructure:"max-companies"`
	APIURL       string `mapstructure:"api-url"`
	APIKeyFile   string `mapstructure:"api-key-file"`
}

type FiltersConfig struct {
	MinRevenueUSD float64 `mapstructure:"min-revenue-usd"`
	MinEmployees  int     `mapstructure:"min-employees"`
	FundedAfter   string  `mapstructure:"funded-after"`
}

type ConcurrencyConfig struct {
	MaxWorkers  int           `mapstructure:"max-workers"`
	TaskTimeout time.Duration `mapstructure:"task-timeout"`
	GracePeriod time.Duration `mapstructure:"grace-period"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type AdzunaConfig struct {
	AppID      string `mapstructure:"app-id"`
	AppKeyFile string `mapstructure:"app-key-file"`
	APIURL     string `mapstructure:"api-url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-researcher searches job openings, ranks them against a resume and screens the hiring companies",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("adzuna.app-key-file", "ADZUNA_APP_KEY_FILE"); err != nil {
		log.Fatalf("binding ADZUNA_APP_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("research.api-key-file", "RESEARCH_API_KEY_FILE"); err != nil {
		log.Fatalf("binding RESEARCH_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-researcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
