package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psantana5/buildtime-profiler/internal/config"
	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	v       = config.NewViper()
	cfg     *config.Config
	logger  *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "btprof",
	Short: "Build time profiler",
	Long: `btprof turns the lifecycle notifications of a multi-module build into a
time breakdown per module, lifecycle phase, plugin goal and dependency transfer.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.btprof.yaml or $HOME/.btprof/config.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "log as JSON lines")

	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_json", flags.Lookup("log-json"))
}

// loadConfig runs before every subcommand
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithComponent("btprof")
	logger.Debug("Configuration loaded", map[string]interface{}{
		"file":   v.ConfigFileUsed(),
		"output": cfg.Output,
	})
	return nil
}
