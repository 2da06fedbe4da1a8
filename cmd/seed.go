package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tclemos/cosmos-bench/benchmark"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the target container if needed and fill it with generated documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return benchmark.RunSeed(ctx, benchmarkConfig(v), seedConfig(v))
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	addTargetFlags(seedCmd.Flags())
	seedCmd.Flags().String("workload", string(benchmark.WorkloadShopping), "Workload type: shopping or generic")
	seedCmd.Flags().Int("count", 1000, "Number of documents to write")
	seedCmd.Flags().Int("concurrency", 8, "Number of concurrent writers")
	seedCmd.Flags().Int64("seed", 42, "Seed for deterministic document generation")
	seedCmd.Flags().Int("value-size", 256, "Generic workload: payload size of each document in bytes")
	seedCmd.Flags().Float64("rate-limit", 0, "Maximum documents written per second (0 for unlimited)")
}
