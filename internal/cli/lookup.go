package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larose/tempblock/index"
)

var (
	lookupField string
	lookupTerm  string
	lookupLimit int
	lookupJSON  bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "List the docs containing a term",
	Long: `Look a term up in every segment and print the matching docs with their
freq, positions and stored url and title. The term is matched exactly as
indexed: text fields are lowercased at index time.

Examples:
  tempblock lookup --field body --term observatory
  tempblock lookup --field url --term https://en.wikipedia.org/wiki/Vicenza --json`,
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVarP(&lookupField, "field", "f", "body", "field to search")
	lookupCmd.Flags().StringVarP(&lookupTerm, "term", "t", "", "term to look up (required)")
	lookupCmd.Flags().IntVarP(&lookupLimit, "limit", "n", 10, "max number of hits printed (0 for all)")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "output as JSON")
	lookupCmd.MarkFlagRequired("term")
}

type LookupHit struct {
	index.Hit
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

type LookupResult struct {
	Field string      `json:"field"`
	Term  string      `json:"term"`
	Count int         `json:"count"`
	Hits  []LookupHit `json:"hits"`
}

// lookup returns the hits of term, keeping the first limit of them when
// limit > 0. Count is always the total number of hits.
func lookup(reader *index.IndexReader, field, term string, limit int) (*LookupResult, error) {
	hits, err := reader.Postings(field, []byte(term))
	if err != nil {
		return nil, err
	}

	result := &LookupResult{
		Field: field,
		Term:  term,
		Count: len(hits),
		Hits:  make([]LookupHit, 0, len(hits)),
	}

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	for _, hit := range hits {
		url, err := reader.StoredValue("url", hit.DocId)
		if err != nil {
			return nil, err
		}

		title, err := reader.StoredValue("title", hit.DocId)
		if err != nil {
			return nil, err
		}

		result.Hits = append(result.Hits, LookupHit{Hit: hit, URL: string(url), Title: string(title)})
	}

	return result, nil
}

func openReader() (*index.IndexReader, error) {
	directory, err := openDirectory(false)
	if err != nil {
		return nil, err
	}

	reader, err := index.NewIndexReader(directory, postingsFormat())
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return reader, nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	result, err := lookup(reader, lookupField, lookupTerm, lookupLimit)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	out := cmd.OutOrStdout()

	if lookupJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	if result.Count == 0 {
		fmt.Fprintf(out, "No docs contain %s:%q\n", result.Field, result.Term)
		return nil
	}

	fmt.Fprintf(out, "%d docs contain %s:%q\n\n", result.Count, result.Field, result.Term)
	for _, hit := range result.Hits {
		fmt.Fprintf(out, "%d  freq=%d", hit.DocId, hit.Freq)
		if len(hit.Positions) > 0 {
			fmt.Fprintf(out, "  positions=%v", hit.Positions)
		}
		fmt.Fprintln(out)
		if hit.Title != "" {
			fmt.Fprintf(out, "    %s\n", hit.Title)
		}
		if hit.URL != "" {
			fmt.Fprintf(out, "    %s\n", hit.URL)
		}
	}

	return nil
}
