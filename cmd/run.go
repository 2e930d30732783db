package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-rotator/internal/ai/gemini"
	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/history"
	"github.com/spigell/job-rotator/internal/logger"
	"github.com/spigell/job-rotator/internal/metrics"
	"github.com/spigell/job-rotator/internal/orchestrator"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/platform/headhunter"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
	"github.com/spigell/job-rotator/internal/secrets"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rotate through the configured platforms and apply to matching jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before starting")
	runCmd.Flags().Bool("once", false, "run a single cycle even if continuous mode is configured")

	viper.BindPFlag("auto-approve", runCmd.Flags().Lookup("auto-approve"))
	viper.BindPFlag("once", runCmd.Flags().Lookup("once"))
}

// run is the main command for the cli.
func run(_ *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	registry := platform.NewRegistry()
	if err := headhunter.Register(registry); err != nil {
		return err
	}

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}
	if err := config.validate(registry); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(config.Search.Keywords) == 0 {
		return errors.New("invalid config: search.keywords is empty")
	}

	logger.Info("starting the job-rotator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config:\n%s", pretty))

	m := metrics.New()
	engine := retry.New(config.Retry, m, logger)
	limiter := quota.NewLimiter(config.Cooldown, nil)

	quotaStore, err := openQuotaStore(ctx, config, logger)
	if err != nil {
		return err
	}
	defer quotaStore.Close()

	historyStore, err := openHistoryStore(ctx, config, logger)
	if err != nil {
		return err
	}
	tracker := history.NewTracker(historyStore, m, logger)
	defer tracker.Close()

	validator := prepareValidator(ctx, config, engine, logger)

	platforms := preparePlatforms(registry, config, logger)
	if len(platforms) == 0 {
		return errors.New("no platform could be prepared, nothing to do")
	}

	if !viper.GetBool("auto-approve") {
		if proceed, err := confirm(platforms); err != nil || !proceed {
			logger.Info("exit requested")
			return err
		}
	}

	continuous := config.Continuous && !viper.GetBool("once")
	runID := uuid.NewString()

	o, err := orchestrator.New(orchestrator.Config{
		Keywords:         config.Search.Keywords,
		Location:         config.Search.Location,
		Continuous:       continuous,
		CycleDelay:       config.CycleDelay,
		ExhaustedBackoff: config.ExhaustedBackoff,
		MaxMalformed:     config.MaxMalformed,
		RankPage:         config.RankPage,
		RunID:            runID,
	}, orchestrator.Deps{
		Quota:      quotaStore,
		Limiter:    limiter,
		Retry:      engine,
		Validator:  validator,
		Filter:     config.Filter,
		Exclusions: filtering.NewExclusions(),
		Tracker:    tracker,
		Observer:   m,
		Logger:     logger.With(zap.String("run_id", runID)),
	}, platforms)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	g.Go(func() error {
		defer cancelRun()
		return o.Run(runCtx)
	})
	if config.Metrics != nil && config.Metrics.Listen != "" {
		server := metrics.NewServer(m, config.Metrics.Listen, logger)
		g.Go(func() error {
			return server.Run(runCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}

	summary := o.Summary()
	logger.Info("job-rotator finished",
		zap.Int("cycles", summary.Cycles),
		zap.Int("applied", summary.Stats.Applied),
		zap.Float64("success_rate", summary.Stats.SuccessRate()),
	)
	return nil
}

func confirm(platforms []orchestrator.Platform) (bool, error) {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.Adapter.Name())
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("Start applying on %s?", strings.Join(names, ", ")),
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, fmt.Errorf("prompt: %w", err)
	}
	return answer == PromptYes, nil
}

func openQuotaStore(ctx context.Context, config *Config, logger *zap.Logger) (quota.Store, error) {
	switch config.Quota.Backend {
	case backendRedis:
		s, err := quota.NewRedisStore(ctx, config.Quota.Redis, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("opening redis quota store: %w", err)
		}
		return s, nil
	default:
		s, err := quota.NewFileStore(config.StateDir, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("opening quota store: %w", err)
		}
		return s, nil
	}
}

func openHistoryStore(ctx context.Context, config *Config, logger *zap.Logger) (history.Store, error) {
	switch config.History.Backend {
	case backendSQLite:
		s, err := history.OpenSQLite(ctx, config.History.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history: %w", err)
		}
		return s, nil
	default:
		s, err := history.NewCSVStore(config.History.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("opening csv history: %w", err)
		}
		return s, nil
	}
}

func prepareValidator(ctx context.Context, config *Config, engine *retry.Engine, logger *zap.Logger) *filtering.Validator {
	var extra []filtering.Rule
	if config.AI != nil && config.AI.Enabled {
		rule, err := prepareAIRule(ctx, config.AI, engine, logger)
		if err != nil {
			logger.Warn("skipping AI filter", zap.String("reason", err.Error()))
		} else {
			extra = append(extra, rule)
		}
	}

	validator := filtering.NewValidator(config.Filter, logger, extra...)
	for _, status := range validator.Describe() {
		fields := []zap.Field{zap.String("rule", status.Name), zap.Bool("enabled", status.Enabled)}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		logger.Debug("filter rule", fields...)
	}
	return validator
}

func prepareAIRule(ctx context.Context, config *AIConfig, engine *retry.Engine, log *zap.Logger) (filtering.Rule, error) {
	if strings.TrimSpace(config.ProfileFile) == "" {
		return nil, errors.New("ai.profile-file is required when ai filter is enabled")
	}
	profile, err := os.ReadFile(config.ProfileFile)
	if err != nil {
		return nil, fmt.Errorf("reading candidate profile: %w", err)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  config.Gemini.APIKeyFile,
		Value: os.Getenv("GEMINI_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.Gemini.Model, engine)
	if err != nil {
		return nil, err
	}

	minScore := config.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	matcherLogger := log.With(
		append(logger.AIFields("gemini", config.Gemini.Model), zap.Float64("minimum_fit_score", minScore))...,
	)
	matcher := gemini.NewMatcher(generator, minScore, config.Gemini.MaxLogLength, matcherLogger)
	matcher.SetPromptOverrides(config.Prompt)

	return filtering.NewAIFit(matcher, string(profile), &config.AIConfig, log), nil
}

// preparePlatforms builds adapters of the enabled platforms. A platform
// whose credentials cannot be resolved is skipped with a warning.
func preparePlatforms(registry *platform.Registry, config *Config, logger *zap.Logger) []orchestrator.Platform {
	var platforms []orchestrator.Platform
	for _, p := range config.Platforms {
		if !p.enabled() {
			continue
		}
		log := logger.With(zap.String("platform", p.Name))

		token, err := secrets.Load(secrets.Source{
			Name:           p.Name + " token",
			Value:          p.Token,
			File:           p.TokenFile,
			KeyringAccount: p.KeyringAccount,
		})
		if err != nil {
			log.Warn("missing credentials, skipping platform", zap.String("reason", err.Error()))
			continue
		}

		resume := p.Resume
		if resume == "" {
			resume = config.DefaultResume
		}

		adapter, err := registry.Build(p.kind(), platform.Options{
			Name:              p.Name,
			Resume:            resume,
			Message:           p.Message,
			Areas:             p.Areas,
			RequestsPerSecond: p.RequestsPerSecond,
			Logger:            logger,
		})
		if err != nil {
			log.Warn("building adapter failed, skipping platform", zap.String("reason", err.Error()))
			continue
		}

		platforms = append(platforms, orchestrator.Platform{
			Adapter:     adapter,
			Credentials: platform.Credentials{Username: p.Username, Token: token},
			Limits:      quota.Limits{Daily: p.DailyLimit, Weekly: p.WeeklyLimit},
			Resume:      resume,
		})
	}
	return platforms
}
