package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-rotator/internal/history"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print outcome statistics from the history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := getConfig()
		if err != nil {
			return fmt.Errorf("getting a config: %w", err)
		}

		store, err := openHistoryStore(cmd.Context(), config, zap.NewNop())
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading history: %w", err)
		}
		return printStats(history.Summarize(records))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printStats(stats history.Stats) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLATFORM\tAPPLIED\tFAILED\tSKIPPED\tSUCCESS RATE")
	for _, name := range stats.Platforms() {
		c := stats.ByPlatform[name]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\n", name, c.Applied, c.Failed, c.Skipped, c.SuccessRate())
	}
	fmt.Fprintf(w, "total\t%d\t%d\t%d\t%.1f%%\n", stats.Applied, stats.Failed, stats.Skipped, stats.SuccessRate())
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("companies applied to: %d\n", stats.Companies)
	return nil
}
