package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	termsField  string
	termsPrefix string
	termsLimit  int
)

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "List the terms of a field",
	Long: `List the terms of a field starting with a prefix, in byte order, with
the number of docs containing each.

Examples:
  tempblock terms --field title --prefix gri
  tempblock terms --field body --limit 100`,
	RunE: runTerms,
}

func init() {
	rootCmd.AddCommand(termsCmd)
	termsCmd.Flags().StringVarP(&termsField, "field", "f", "body", "field to list")
	termsCmd.Flags().StringVarP(&termsPrefix, "prefix", "p", "", "only list terms starting with prefix")
	termsCmd.Flags().IntVarP(&termsLimit, "limit", "n", 50, "max number of terms (0 for all)")
}

func runTerms(cmd *cobra.Command, args []string) error {
	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	terms, err := reader.Terms(termsField, []byte(termsPrefix), termsLimit)
	if err != nil {
		return fmt.Errorf("failed to list terms: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TERM\tDOCS")
	for _, term := range terms {
		fmt.Fprintf(w, "%s\t%d\n", term.Term, term.DocFreq)
	}

	return w.Flush()
}
