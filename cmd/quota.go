package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/quota"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Print per-platform counters and the allowance left",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		store, err := openQuotaStore(cmd.Context(), config, zap.NewNop())
		if err != nil {
			return err
		}
		defer store.Close()

		return printQuota(cmd.Context(), config, store, quota.NewLimiter(config.Cooldown, nil))
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

func printQuota(ctx context.Context, config *Config, store quota.Store, limiter *quota.Limiter) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tDAILY\tWEEKLY\tDAILY LEFT\tWEEKLY LEFT\tNEXT ACTION IN")

	for _, p := range config.Platforms {
		if !p.enabled() {
			continue
		}
		limits := quota.Limits{Daily: p.DailyLimit, Weekly: p.WeeklyLimit}
		state := limiter.ResetIfNeeded(store.Load(ctx, p.Name))
		daily, weekly := limiter.Remaining(state, limits)

		weeklyLeft := "unlimited"
		if weekly >= 0 {
			weeklyLeft = fmt.Sprint(weekly)
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%d\t%d\t%s\t%s\n",
			p.Name, state.DailyCount, p.DailyLimit, state.WeeklyCount, daily, weeklyLeft,
			limiter.WaitTimeRemaining(state).Round(time.Second),
		)
	}
	return w.Flush()
}
