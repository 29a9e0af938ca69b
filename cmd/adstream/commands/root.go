package commands

import (
	"fmt"

	"adstream/pkg/config"
	"adstream/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

var rootCmd = &cobra.Command{
	Use:   "adstream",
	Short: "AdStream - live encoded-media relay",
	Long: `AdStream captures a screen region, encodes it and relays the stream
to watchers discovered over the local network. Run "serve" on the
machine that shares its screen and "watch" on the machines that view
it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("nickname", "", "Override the advertised nickname")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AdStream\n")
		fmt.Printf("  Version: %s\n", Version)
		fmt.Printf("  Commit:  %s\n", Commit)
	},
}

// loadConfig reads the configuration named by the flag and applies
// command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.SugaredLogger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if nick, _ := cmd.Flags().GetString("nickname"); nick != "" {
		cfg.Service.Nickname = nick
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).Sugar()
	return cfg, log, nil
}
