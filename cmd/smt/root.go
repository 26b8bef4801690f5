package smt

import (
	"fmt"
	"os"

	"github.com/edgeflare/smt/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string
var logLevel string
var cfg *config.Config
var rootCmd = &cobra.Command{
	Use:   "smt",
	Short: "smt applies single message transforms to streaming records",
	Long:  `smt moves records among endpoints aka peers, renaming and reshaping them on the way`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(logLevel)
	},
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help()
	},
}

func Main() {
	defer zap.L().Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/smt.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "info", "log at this level (debug, info, warn, error, fatal, none)")
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number")

	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(renameCmd)
}

// initLogger replaces the global zap logger. Logs go to stderr so stdout stays free for records.
func initLogger(level string) error {
	if level == "none" {
		zap.ReplaceGlobals(zap.NewNop())
		return nil
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func loadConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	return nil
}
