package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/inovacc/trafficr/internal/application"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgPath   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "A GitHub clone-traffic archiver",
	Long: `Trafficr periodically pulls per-repository clone-traffic statistics
from the GitHub API, merges them into a local record store without
creating duplicates, and forwards records that have not been synced yet
to a NocoDB table.

The GitHub traffic API only keeps a rolling two-week window; trafficr
exists so that history survives past it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format: text or json")

	// Accept log_format as an alias for log-format, matching the config
	// file's key style.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
