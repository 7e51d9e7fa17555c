package argos

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/maintenance"
)

var prunePersonsCmd = &cobra.Command{
	Use:   "prune-persons",
	Short: "Delete extracted persons that authored nothing",
	Long: `Delete every Person node without an AUTHORED edge, along with all of
its relationships. Author nodes are untouched. Counts are logged before
and after.`,
	RunE: runPrunePersons,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print node and relationship counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(prunePersonsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runPrunePersons(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	pruner := maintenance.NewPruner(store, log, newCollector(log))
	_, err = pruner.PrunePersons(ctx)
	return err
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	reporter := maintenance.NewReporter(store, log, newCollector(log))
	stats, err := reporter.Collect(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Nodes:")
	printCounts(stats.Nodes)
	fmt.Println("Relationships:")
	printCounts(stats.Rels)
	return nil
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-18s %d\n", k, counts[k])
	}
}
