// Package app provides the entry point for the Source Registry API application.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/newsnow-ops/source-registry-server/internal/config"
	"github.com/newsnow-ops/source-registry-server/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "source-registry-api",
	DisableAutoGenTag: true,
	Short:             "Source Registry API server",
	Long: `Source Registry API server registers news sources and triggers the rebuild of the
aggregation service that compiles them in.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates a new root command for the Source Registry API.
func NewRootCmd() *cobra.Command {
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format); defaults apply when omitted")
	err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		slog.Error("Error binding config flag", "error", err)
	}

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// initConfig lets SOURCE_REGISTRY_* environment variables override flags
func initConfig() {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfig loads the configuration file named by --config, or the defaults
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		slog.Info("No configuration file given, using defaults")
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", path,
		"document", cfg.GetDocumentPath(),
		"modules_dir", cfg.GetModulesDir())
	return cfg, nil
}

// printJSON writes v to out as indented JSON
func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.Current()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			if err := printJSON(cmd.OutOrStdout(), info); err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
			}
		} else {
			slog.Info("source-registry-api version",
				"version", info.Version,
				"commit", info.Commit,
				"modified", info.Modified,
				"go", info.GoVersion)
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
