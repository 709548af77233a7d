package cmd

import (
	"fmt"

	"github.com/inovacc/trafficr/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and display the configuration",
	Long: `Load the configuration file, apply defaults, validate it, and print
the result with tokens masked. Exits non-zero when the configuration
would be rejected at startup.`,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	_, _ = cmd, args

	cfg, err := config.Load(config.Locate(cfgPath))
	if err != nil {
		return err
	}

	fmt.Println("Current Configuration:")
	fmt.Println("=====================")
	fmt.Printf("Storage Root:       %s\n", cfg.Storage.Path)
	fmt.Printf("Archiver Period:    %d days\n", cfg.ArchiverPeriod)
	fmt.Printf("Remote URL:         %s\n", cfg.Remote.URL)
	fmt.Printf("Remote Table:       %s\n", cfg.Remote.TableID)
	fmt.Printf("Remote Token:       %s\n", maskToken(cfg.Remote.Token))
	fmt.Printf("Min Call Spacing:   %s\n", cfg.Remote.MinCallSpacing.Std())
	fmt.Printf("Repositories:       %d\n", len(cfg.Repositories))

	for _, repo := range cfg.Repositories {
		fmt.Printf("  - %s (token %s)\n", repo.UID(), maskToken(repo.Token))
	}

	return nil
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}

	return token[:4] + "****"
}
