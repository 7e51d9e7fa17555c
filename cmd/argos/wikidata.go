package argos

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/config"
	"github.com/argos-kg/argos/pkg/wikidata"
)

var enrichPlacesCmd = &cobra.Command{
	Use:   "enrich-places",
	Short: "Link places to Wikidata by Pleiades id",
	Long: `Resolve places against Wikidata through the Pleiades id property
(P1584), in batches over the SPARQL query service. Matched places get a
SAME_AS edge to a WikidataEntity carrying label, class and coordinates.`,
	RunE: runEnrichPlaces,
}

var linkLabelsCmd = &cobra.Command{
	Use:   "link-labels",
	Short: "Link concepts, persons and articles to Wikidata by label",
	Long: `Search Wikidata for every unlinked concept, person and article and
link those with an exact label or alias match. Fuzzy search hits are
ignored.`,
	RunE: runLinkLabels,
}

func init() {
	rootCmd.AddCommand(enrichPlacesCmd)
	rootCmd.AddCommand(linkLabelsCmd)
}

func wikidataClient(cfg *config.Config, log *slog.Logger) *wikidata.Client {
	return wikidata.NewClient(wikidata.ClientConfig{
		SPARQLURL:     cfg.Wikidata.SPARQLURL,
		SearchURL:     cfg.Wikidata.SearchURL,
		UserAgent:     cfg.Wikidata.UserAgent,
		MaxRetries:    cfg.Wikidata.MaxRetries,
		RetrySleep:    cfg.Wikidata.RetrySleep,
		PolitePause:   cfg.Wikidata.PolitePause,
		SearchSleep:   cfg.Wikidata.SearchSleep,
		SearchLimit:   cfg.Wikidata.SearchLimit,
		QueryTimeout:  cfg.Wikidata.QueryTimeout,
		SearchTimeout: cfg.Wikidata.SearchTimeout,
	}, log)
}

func runEnrichPlaces(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	enricher := wikidata.NewEnricher(store, wikidataClient(cfg, log), cfg.Wikidata.BatchSize, log, newCollector(log))
	_, err = enricher.EnrichPlaces(ctx)
	return err
}

func runLinkLabels(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	linker := wikidata.NewLabelLinker(store, wikidataClient(cfg, log), log, newCollector(log))
	_, err = linker.LinkLabels(ctx)
	return err
}
