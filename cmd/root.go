package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tclemos/cosmos-bench/logging"
)

var (
	cfgFile string

	// v holds the configuration loaded for the running command
	v *viper.Viper
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cosmos-bench",
	Short: "Measure query latency and request units against Azure Cosmos DB",
	Long: `cosmos-bench runs the same query against a Cosmos DB container until stopped,
printing the latency and request charge of every execution, then summarizes
the fastest 99 executions.

Configuration is read from flags, COSMOS_BENCH_* environment variables and an
optional cosmos-bench.yaml file, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cmd.Flags(), cfgFile)
		if err != nil {
			return err
		}
		v = loaded
		logging.Setup(v.GetString("log.format"), v.GetString("log.level"), os.Stderr)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is ./cosmos-bench.yaml or $HOME/.cosmos-bench/cosmos-bench.yaml)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: 'json' or 'console'")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
}
