package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	purgeOlderThan time.Duration
)

// historyCmd lists recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

// cacheCmd manages the derivation cache
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the derivation cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show derivation cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove cached derivations",
	Long: `Removes cached derivations older than --older-than. The default of
zero removes every entry.`,
	Args: cobra.NoArgs,
	RunE: runCachePurge,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cachePurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "Only remove entries older than this")
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if st == nil {
		fmt.Fprintln(out, "Run history is disabled (deriver.cache_path is empty).")
		return nil
	}
	defer st.Close()

	runs, err := st.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-19s  %-9s  %5s  %5s  %-9s  %s\n",
		"RUN", "STARTED", "SELECTION", "MODEL", "MODES", "OUTCOME", "ARTIFACT")
	fmt.Fprintln(out, strings.Repeat("─", 78))
	for _, r := range runs {
		detail := r.Artifact
		if r.Error != "" {
			detail = r.Error
		}
		fmt.Fprintf(out, "%-8s  %-19s  %-9s  %5d  %5d  %-9s  %s\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Selection,
			r.Model, r.NumModes, r.Outcome, detail)
		if r.Violation != "" {
			fmt.Fprintf(out, "          violation: %s\n", r.Violation)
		}
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if st == nil {
		fmt.Fprintln(out, "Derivation cache is disabled.")
		return nil
	}
	defer st.Close()

	n, err := st.Len(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Cache:   %s\n", st.Path())
	fmt.Fprintf(out, "Entries: %d\n", n)
	return nil
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if st == nil {
		fmt.Fprintln(out, "Derivation cache is disabled.")
		return nil
	}
	defer st.Close()

	// A zero duration puts the cutoff in the future so every entry goes.
	cutoff := time.Now().Add(time.Second)
	if purgeOlderThan > 0 {
		cutoff = time.Now().Add(-purgeOlderThan)
	}
	removed, err := st.Purge(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d cached derivations\n", removed)
	return nil
}
