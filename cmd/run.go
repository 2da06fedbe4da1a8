package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tclemos/cosmos-bench/benchmark"
	"github.com/tclemos/cosmos-bench/console"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the query benchmark until Enter is pressed or a limit is reached",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := benchmarkConfig(v)
		out := cmd.OutOrStdout()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		keys := console.NewReader(cmd.InOrStdin())
		runCtx, cancel := keys.CancelOnKey(ctx)
		err := benchmark.RunBenchmark(runCtx, cfg, out)
		cancel()

		// nothing to read when the run never started or was signalled
		if v.GetBool("pause_on_exit") && ctx.Err() == nil && !errors.Is(err, benchmark.ErrSetup) {
			benchmark.PrintExitPrompt(out)
			keys.WaitForKey(ctx)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	addTargetFlags(runCmd.Flags())
	runCmd.Flags().String("partition-key", "", "Partition key value to scope the query to (default cross-partition)")
	runCmd.Flags().String("consistency", benchmark.DefaultConsistency, "Consistency level: Strong, BoundedStaleness, Session, ConsistentPrefix or Eventual")
	runCmd.Flags().String("query", benchmark.DefaultQuery, "Query to benchmark")
	runCmd.Flags().Int("page-size", 0, "Maximum items per page (0 lets the service choose)")
	runCmd.Flags().Int("warmup", 0, "Unrecorded iterations to run before measuring")
	runCmd.Flags().Int("max-iterations", 0, "Stop after this many iterations (0 for unlimited)")
	runCmd.Flags().Duration("max-duration", 0, "Stop after this much time (0 for unlimited)")
	runCmd.Flags().Duration("query-timeout", 0, "Fail a query execution that takes longer than this (0 for none)")
	runCmd.Flags().Bool("pause-on-exit", true, "Wait for Enter after printing the summary")
	runCmd.Flags().String("results-db", "", "Path of the run history store (empty disables history)")
	runCmd.Flags().String("results-csv", "", "Path of a CSV file receiving every iteration (empty disables export)")
	runCmd.Flags().String("metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090 (empty disables)")
}
