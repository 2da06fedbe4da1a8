package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tclemos/cosmos-bench/history"
)

// historyCmd groups the commands that inspect recorded runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect benchmark runs recorded with --results-db",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs()
		if err != nil {
			return err
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run and its iterations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Run(args[0])
		if err != nil {
			return err
		}
		its, err := store.Iterations(run.ID)
		if err != nil {
			return err
		}
		return printRun(cmd.OutOrStdout(), run, its)
	},
}

func openHistory() (*history.Store, error) {
	path := v.GetString("results.db_path")
	if path == "" {
		return nil, errors.New("no history store configured, set --results-db or results.db_path")
	}
	return history.Open(path)
}

func printRuns(out io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tBACKEND\tCONTAINER\tITERATIONS\tAVG LATENCY (ms)\tAVG RUs\tSTATUS")
	for _, r := range runs {
		status := "ok"
		if r.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%d\t%.1f\t%.1f\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Backend,
			r.Database, r.Container,
			r.Iterations,
			r.AverageLatencyMs,
			r.AverageRequestCharge,
			status,
		)
	}
	return tw.Flush()
}

func printRun(out io.Writer, run history.Run, its []history.Iteration) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Started:\t%s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Duration:\t%s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(tw, "Backend:\t%s\n", run.Backend)
	fmt.Fprintf(tw, "Target:\t%s/%s\n", run.Database, run.Container)
	fmt.Fprintf(tw, "Query:\t%s\n", run.Query)
	fmt.Fprintf(tw, "Iterations:\t%d\n", run.Iterations)
	fmt.Fprintf(tw, "Average Latency:\t%.1f ms\n", run.AverageLatencyMs)
	fmt.Fprintf(tw, "Average Request Units:\t%.1f RUs\n", run.AverageRequestCharge)
	if run.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", run.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(its) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ITERATION\tLATENCY (ms)\tREQUEST CHARGE (RUs)\t")
	for _, it := range its {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t\n", it.Iteration, it.LatencyMs, it.RequestCharge)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd)

	historyCmd.PersistentFlags().String("results-db", "", "Path of the run history store")
}
