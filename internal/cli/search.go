package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/larose/tempblock/index"
)

var (
	searchField string
	searchQuery string
	searchMatch string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List the docs matching all or any of the query terms",
	Long: `Tokenize the query like text fields are indexed and list the docs
containing every term (--match must) or any term (--match should).

Examples:
  tempblock search -q "griffith observatory"
  tempblock search -q "bowel obstruction" --match should --limit 20`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchField, "field", "f", "body", "field to search")
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().StringVarP(&searchMatch, "match", "m", "must", "must (all terms) or should (any term)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "max number of docs printed (0 for all)")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	matchType, err := index.ParseMatchType(searchMatch)
	if err != nil {
		return err
	}

	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	docIds, err := reader.Match(searchField, index.Analyze(searchQuery), matchType)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d docs match %s %q\n\n", docIds.GetCardinality(), matchType, searchQuery)

	printed := 0
	iterator := docIds.Iterator()
	for iterator.HasNext() && (searchLimit <= 0 || printed < searchLimit) {
		docId := iterator.Next()

		title, err := reader.StoredValue("title", docId)
		if err != nil {
			return err
		}
		url, err := reader.StoredValue("url", docId)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%d  %s\n    %s\n", docId, title, url)
		printed++
	}

	return nil
}
