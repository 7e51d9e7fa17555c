package argos

import (
	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/concepts"
	"github.com/argos-kg/argos/pkg/extract"
)

var rebuildConceptsCmd = &cobra.Command{
	Use:   "rebuild-concepts",
	Short: "Rebuild the concept layer from chunk text",
	Long: `Re-run noun-phrase extraction over every chunk and add Concept nodes
for phrases that clear the corpus-wide frequency threshold. Existing
concepts are kept; the pass only adds.`,
	RunE: runRebuildConcepts,
}

var (
	rebuildMinFreq   int
	rebuildMaxTokens int
)

func init() {
	rootCmd.AddCommand(rebuildConceptsCmd)

	rebuildConceptsCmd.Flags().IntVar(&rebuildMinFreq, "min-freq", 0, "Minimum corpus-wide frequency (default from config)")
	rebuildConceptsCmd.Flags().IntVar(&rebuildMaxTokens, "max-tokens", 0, "Maximum tokens per phrase (default from config)")
}

func runRebuildConcepts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	minFreq := cfg.Concepts.MinGlobalFreq
	if rebuildMinFreq > 0 {
		minFreq = rebuildMinFreq
	}
	maxTokens := cfg.Concepts.MaxTokens
	if rebuildMaxTokens > 0 {
		maxTokens = rebuildMaxTokens
	}

	ex := extract.NewExtractor(extract.NewHTTPRecognizer(cfg.Recognizer.URL), cfg.Concepts.Allowlist)
	rebuilder := concepts.NewRebuilder(store, ex, log, newCollector(log))
	return rebuilder.Rebuild(ctx, minFreq, maxTokens)
}
