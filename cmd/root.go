package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/spigell/job-rotator/internal/ai/gemini"
	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/orchestrator"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
)

const (
	app       = "job-rotator"
	envPrefix = "JOB_ROTATOR"

	backendFile   = "file"
	backendRedis  = "redis"
	backendCSV    = "csv"
	backendSQLite = "sqlite"
)

type Config struct {
	StateDir         string            `mapstructure:"state-dir"`
	Continuous       bool              `mapstructure:"continuous"`
	CycleDelay       time.Duration     `mapstructure:"cycle-delay"`
	ExhaustedBackoff time.Duration     `mapstructure:"exhausted-backoff"`
	Cooldown         time.Duration     `mapstructure:"cooldown"`
	RankPage         bool              `mapstructure:"rank-page"`
	MaxMalformed     int               `mapstructure:"max-malformed"`
	DefaultResume    string            `mapstructure:"default-resume"`
	Search           *SearchConfig     `mapstructure:"search"`
	Quota            *QuotaConfig      `mapstructure:"quota"`
	History          *HistoryConfig    `mapstructure:"history"`
	Retry            retry.Config      `mapstructure:"retry"`
	Filter           *filtering.Config `mapstructure:"filter"`
	Platforms        []PlatformConfig  `mapstructure:"platforms"`
	AI               *AIConfig         `mapstructure:"ai"`
	Metrics          *MetricsConfig    `mapstructure:"metrics"`
}

type SearchConfig struct {
	Keywords []string `mapstructure:"keywords"`
	Location string   `mapstructure:"location"`
}

type QuotaConfig struct {
	Backend string            `mapstructure:"backend"`
	Redis   quota.RedisConfig `mapstructure:"redis"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// PlatformConfig describes one platform account.
type PlatformConfig struct {
	Name string `mapstructure:"name"`
	// Kind selects the adapter. It defaults to Name.
	Kind              string  `mapstructure:"kind"`
	Enabled           *bool   `mapstructure:"enabled"`
	DailyLimit        int     `mapstructure:"daily-limit"`
	WeeklyLimit       int     `mapstructure:"weekly-limit"`
	Username          string  `mapstructure:"username"`
	Token             string  `mapstructure:"token" json:"-"`
	TokenFile         string  `mapstructure:"token-file"`
	KeyringAccount    string  `mapstructure:"keyring-account"`
	Resume            string  `mapstructure:"resume"`
	Message           string  `mapstructure:"message"`
	Areas             []int   `mapstructure:"areas"`
	RequestsPerSecond float64 `mapstructure:"requests-per-second"`
}

func (p PlatformConfig) kind() string {
	if k := strings.TrimSpace(p.Kind); k != "" {
		return k
	}
	return p.Name
}

func (p PlatformConfig) enabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type AIConfig struct {
	filtering.AIConfig `mapstructure:",squash"`
	Prompt             gemini.PromptOverrides `mapstructure:"prompt"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "job-rotator applies to matching jobs across several job platforms within per-platform quotas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-rotator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	weights := filtering.DefaultWeights()

	v.SetDefault("state-dir", "./state")
	v.SetDefault("continuous", false)
	v.SetDefault("cycle-delay", orchestrator.DefaultCycleDelay)
	v.SetDefault("exhausted-backoff", orchestrator.DefaultExhaustedBackoff)
	v.SetDefault("cooldown", quota.DefaultCooldown)
	v.SetDefault("rank-page", false)
	v.SetDefault("max-malformed", orchestrator.DefaultMaxMalformed)
	v.SetDefault("quota.backend", backendFile)
	v.SetDefault("history.backend", backendCSV)
	v.SetDefault("retry.max-attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.base-delay", retry.DefaultBaseDelay)
	v.SetDefault("filter.current-experience", filtering.ExperienceUnset)
	v.SetDefault("filter.weights.title", weights.Title)
	v.SetDefault("filter.weights.location", weights.Location)
	v.SetDefault("filter.weights.work-style", weights.WorkStyle)
	v.SetDefault("filter.weights.experience", weights.Experience)
}

func initConfig() {
	// Only commands working with state need the config.
	if runCmd.CalledAs() == "" && quotaCmd.CalledAs() == "" && statsCmd.CalledAs() == "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
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

	if config.Search == nil {
		config.Search = &SearchConfig{}
	}
	if config.Quota == nil {
		config.Quota = &QuotaConfig{Backend: backendFile}
	}
	if config.History == nil {
		config.History = &HistoryConfig{Backend: backendCSV}
	}
	if config.History.Path == "" {
		name := "history.csv"
		if config.History.Backend == backendSQLite {
			name = "history.db"
		}
		config.History.Path = filepath.Join(config.StateDir, name)
	}
	if config.Filter == nil {
		config.Filter = &filtering.Config{CurrentExperience: filtering.ExperienceUnset, Weights: filtering.DefaultWeights()}
	}

	return config, nil
}

// validate checks the settings needed before anything starts.
func (c *Config) validate(registry *platform.Registry) error {
	var errs []error

	switch c.Quota.Backend {
	case backendFile, backendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown quota backend %q", c.Quota.Backend))
	}
	switch c.History.Backend {
	case backendCSV, backendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}

	if err := c.Filter.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter.weights: %w", err))
	}
	if err := c.Filter.ValidateDisabledRules(); err != nil {
		errs = append(errs, fmt.Errorf("filter.disabled-rules: %w", err))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max-attempts must be at least 1"))
	}
	if c.AI != nil {
		if err := c.AI.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	known := make(map[string]bool)
	for _, k := range registry.Kinds() {
		known[k] = true
	}

	enabled := 0
	seen := make(map[string]bool)
	for i, p := range c.Platforms {
		if !p.enabled() {
			continue
		}
		enabled++
		if strings.TrimSpace(p.Name) == "" {
			errs = append(errs, fmt.Errorf("platforms[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("platform %q is configured twice", p.Name))
		}
		seen[p.Name] = true
		if !known[p.kind()] {
			errs = append(errs, fmt.Errorf("platform %q: unknown adapter %q (known: %s)", p.Name, p.kind(), strings.Join(registry.Kinds(), ", ")))
		}
		if p.DailyLimit <= 0 {
			errs = append(errs, fmt.Errorf("platform %q: daily-limit must be positive", p.Name))
		}
		if p.WeeklyLimit < 0 {
			errs = append(errs, fmt.Errorf("platform %q: weekly-limit must not be negative", p.Name))
		}
	}
	if enabled == 0 {
		errs = append(errs, errors.New("no enabled platforms configured"))
	}

	return multierr.Combine(errs...)
}
