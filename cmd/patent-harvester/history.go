package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/patent-harvester/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past harvest runs",
	Long: `History reads the run ledger under the output directory and lists past
runs, newest first. With --run it prints the per-patent outcomes of one run.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyCmd.Flags().Int64("run", 0, "show per-patent outcomes for one run id")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetInt64("run")

	led, err := ledger.Open(output)
	if err != nil {
		return err
	}
	defer led.Close()

	if runID > 0 {
		outcomes, err := led.Outcomes(cmd.Context(), runID)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			return fmt.Errorf("no outcomes recorded for run %d", runID)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTIFIER\tSTATUS\tARTIFACT\tERROR")
		for _, o := range outcomes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Identifier, o.Status, o.ArtifactPath, o.Error)
		}
		return w.Flush()
	}

	runs, err := led.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tTOPIC\tPDF\tHTML\tNOT FOUND\tFAILED\tELAPSED")
	for _, r := range runs {
		topic := r.Topic
		if topic == "" {
			topic = "(explicit identifiers)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.Started.Format(time.DateTime),
			topic,
			r.PDFSaved,
			r.HTMLSaved,
			r.NotFound,
			r.Failed,
			r.Elapsed.Round(time.Second))
	}
	return w.Flush()
}
