package argos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argos-kg/argos/pkg/embedder"
	"github.com/argos-kg/argos/pkg/extract"
	"github.com/argos-kg/argos/pkg/ingest"
	"github.com/argos-kg/argos/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest chunked articles into the graph",
	Long: `Ingest chunked articles into the graph.

Two modes:
  single article:  --jsonl chunks.jsonl [--meta article.meta.json]
  whole corpus:    --meta-dir meta/ --chunks-dir chunks/

In corpus mode every *.meta.json file drives one article; its chunk file
is found by articleId. Articles that fail are skipped, not fatal.`,
	RunE: runIngest,
}

var (
	ingestJSONL     string
	ingestMeta      string
	ingestMetaDir   string
	ingestChunksDir string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestJSONL, "jsonl", "", "Chunk file (JSONL) for a single article")
	ingestCmd.Flags().StringVar(&ingestMeta, "meta", "", "Metadata file for a single article")
	ingestCmd.Flags().StringVar(&ingestMetaDir, "meta-dir", "", "Directory of *.meta.json files")
	ingestCmd.Flags().StringVar(&ingestChunksDir, "chunks-dir", "", "Directory of chunk JSONL files")
}

func runIngest(cmd *cobra.Command, args []string) error {
	bulk := ingestMetaDir != "" || ingestChunksDir != ""
	single := ingestJSONL != ""
	if bulk == single {
		return fmt.Errorf("pass either --jsonl (single article) or --meta-dir and --chunks-dir (corpus)")
	}
	if bulk && (ingestMetaDir == "" || ingestChunksDir == "") {
		return fmt.Errorf("corpus mode needs both --meta-dir and --chunks-dir")
	}

	ctx := cmd.Context()
	cfg, log, store, err := setup(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create indices: %w", err)
	}

	emb := embedder.NewOpenAIEmbedder(cfg.Embedding.APIKey, embedder.Config{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	defer emb.Close()

	ex := extract.NewExtractor(extract.NewHTTPRecognizer(cfg.Recognizer.URL), cfg.Concepts.Allowlist)
	ingestor := ingest.NewIngestor(store, emb, ex, log, newCollector(log))

	if bulk {
		result, err := ingestor.IngestAll(ctx, ingestMetaDir, ingestChunksDir)
		if err != nil {
			return err
		}
		log.Info("corpus ingested",
			"articles", result.Ingested,
			"skipped_no_chunks", result.SkippedNoChunks,
			"skipped_bad", result.SkippedBad)
		return nil
	}

	chunks, err := ingest.ReadChunks(ingestJSONL, log)
	if err != nil {
		return err
	}
	var meta *types.ArticleMeta
	if ingestMeta != "" {
		if meta, err = ingest.LoadMeta(ingestMeta); err != nil {
			return err
		}
	}
	return ingestor.Ingest(ctx, chunks, meta)
}
