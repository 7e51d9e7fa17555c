package argos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/gazetteer"
	"github.com/argos-kg/argos/pkg/places"
)

var importPlacesCmd = &cobra.Command{
	Use:   "import-places",
	Short: "Import a gazetteer dump as Place nodes",
	Long: `Import a gazetteer dump as Place nodes.

The dump's layout is probed automatically: a top-level array, a wrapper
object, a GeoJSON feature collection, an id-keyed map, or one object per
line. Gzipped files are decompressed transparently.`,
	RunE: runImportPlaces,
}

var linkPlacesCmd = &cobra.Command{
	Use:   "link-places",
	Short: "Link chunks to the places they mention",
	Long: `Scan every chunk's text against the full place-name dictionary and
write a MENTIONS edge for each name found on a token boundary.`,
	RunE: runLinkPlaces,
}

var importPlacesSource string

func init() {
	rootCmd.AddCommand(importPlacesCmd)
	rootCmd.AddCommand(linkPlacesCmd)

	importPlacesCmd.Flags().StringVar(&importPlacesSource, "source", "", "Gazetteer dump file (overrides PLEIADES_JSON)")
}

func runImportPlaces(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	source := importPlacesSource
	if source == "" {
		source = cfg.Gazetteer.Source
	}
	if source == "" {
		return fmt.Errorf("no gazetteer source: pass --source or set PLEIADES_JSON")
	}

	if err := store.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	importer := gazetteer.NewImporter(store, log, newCollector(log))
	result, err := importer.ImportPlaces(ctx, gazetteer.NewFileReader(source))
	if err != nil {
		return err
	}
	log.Info("gazetteer imported",
		"shape", result.Shape.String(),
		"places", result.Places,
		"connections", result.Connections,
		"skipped_no_id", result.SkippedNoID)
	return nil
}

func runLinkPlaces(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	linker := places.NewLinker(store, log, newCollector(log))
	return linker.LinkMentions(ctx)
}
