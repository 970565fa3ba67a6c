package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ARobicsek/bible-figurative-language-sub000/internal/model"
	"github.com/ARobicsek/bible-figurative-language-sub000/internal/store"
)

var (
	resultsBook     string
	resultsOutcome  string
	resultsPositive bool
	resultsLimit    int
	resultsOffset   int
	resultsJSON     bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored analysis results",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.ResultFilter{
			Book:         resultsBook,
			Outcome:      model.Outcome(resultsOutcome),
			PositiveOnly: resultsPositive,
			Limit:        resultsLimit,
			Offset:       resultsOffset,
		}

		rows, err := st.ListResults(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list results")
		}

		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}

		if resultsJSON {
			out, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal results")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		formatResults(cmd.OutOrStdout(), rows)
		return nil
	},
}

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List passages whose last run was truncated or failed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		refs, err := st.UnresolvedRefs(ctx)
		if err != nil {
			return eris.Wrap(err, "list unresolved")
		}
		for _, ref := range refs {
			fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	},
}

func init() {
	resultsCmd.Flags().StringVar(&resultsBook, "book", "", "filter by book name")
	resultsCmd.Flags().StringVar(&resultsOutcome, "outcome", "", "filter by outcome (complete, empty, truncated, failed)")
	resultsCmd.Flags().BoolVar(&resultsPositive, "positive", false, "only passages with confirmed figurative language")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 50, "max rows to return")
	resultsCmd.Flags().IntVar(&resultsOffset, "offset", 0, "rows to skip")
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "output JSON instead of a table")
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(unresolvedCmd)
}

// formatResults writes a tabular list of passage results to w.
func formatResults(out io.Writer, rows []store.PassageResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tOUTCOME\tTIER\tBACKEND\tFINDINGS\tCONFIRMED\tERROR")
	for _, r := range rows {
		errText := r.Error
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
			r.Ref, r.Outcome, r.Tier, r.Backend, r.Candidates, r.Positive, errText)
	}
	w.Flush()
}
