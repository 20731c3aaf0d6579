package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/larose/tempblock/index"
)

var (
	indexInputs  []string
	indexWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index [files...]",
	Short: "Index JSONL articles",
	Long: `Index JSONL articles into the index directory. Each batch of articles
becomes one segment.

Without file arguments, the files under the root directory matching the
--input patterns (or ingest.includes) are indexed.

Examples:
  tempblock index wiki-articles.jsonl
  tempblock index --input "data/**/*.jsonl" --workers 8`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringSliceVarP(&indexInputs, "input", "i", nil, "glob patterns of the input files (default from config)")
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "w", 0, "number of segments flushed in parallel (default from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		patterns := cfg.Ingest.Includes
		if len(indexInputs) > 0 {
			patterns = indexInputs
		}

		var err error
		paths, err = findInputs(rootDir, patterns)
		if err != nil {
			return fmt.Errorf("failed to find input files: %w", err)
		}
	}

	if len(paths) == 0 {
		return fmt.Errorf("no input files")
	}

	workers := cfg.Ingest.Workers
	if indexWorkers > 0 {
		workers = indexWorkers
	}

	directory, err := openDirectory(true)
	if err != nil {
		return err
	}

	writer := index.NewIndexWriter(directory, postingsFormat())

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSetDescription("Indexing"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	start := time.Now()

	result, err := ingest(cmd.Context(), writer, paths, cfg.Index.BatchSize, workers, func(segment *index.SegmentCommit) {
		_ = bar.Add(int(segment.DocCount))
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexing complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Files:    %d\n", len(paths))
	fmt.Fprintf(cmd.OutOrStdout(), "  Docs:     %d\n", result.Docs)
	fmt.Fprintf(cmd.OutOrStdout(), "  Segments: %d\n", result.Segments)
	fmt.Fprintf(cmd.OutOrStdout(), "  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "\nIndex stored at: %s\n", directory.Path())

	return nil
}

type ingestResult struct {
	Docs     uint64
	Segments int
}

// ingest reads the articles of paths in batches of batchSize and flushes
// every batch as a segment, with up to workers flushes in flight. onSegment
// runs on the calling goroutine, once per committed segment.
func ingest(ctx context.Context, writer *index.IndexWriter, paths []string, batchSize, workers int, onSegment func(*index.SegmentCommit)) (ingestResult, error) {
	group, ctx := errgroup.WithContext(ctx)
	batches := make(chan []index.Document, workers)
	segments := make(chan *index.SegmentCommit, workers)

	group.Go(func() error {
		defer close(batches)

		for _, path := range paths {
			if err := readBatches(ctx, path, batchSize, batches); err != nil {
				return err
			}
		}

		return nil
	})

	var flushers sync.WaitGroup
	for range workers {
		flushers.Add(1)
		group.Go(func() error {
			defer flushers.Done()

			for docs := range batches {
				if err := ctx.Err(); err != nil {
					return err
				}

				segment, err := writer.AddDocuments(docs)
				if err != nil {
					return err
				}
				if segment != nil {
					segments <- segment
				}
			}

			return nil
		})
	}

	go func() {
		flushers.Wait()
		close(segments)
	}()

	var result ingestResult
	for segment := range segments {
		result.Docs += uint64(segment.DocCount)
		result.Segments++
		if onSegment != nil {
			onSegment(segment)
		}
	}

	return result, group.Wait()
}

func readBatches(ctx context.Context, path string, batchSize int, batches chan<- []index.Document) error {
	iterator, err := openArticleIterator(path)
	if err != nil {
		return err
	}
	defer iterator.Close()

	for {
		articles, err := iterator.NextBatch(batchSize)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		if len(articles) == 0 {
			return nil
		}

		docs := make([]index.Document, len(articles))
		for i, article := range articles {
			docs[i] = convertArticleToDocument(article)
		}

		select {
		case batches <- docs:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
