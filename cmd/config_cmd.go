// Package cmd implements the fintrack CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Printf("  Session store: %s\n", config.StorePath())
	fmt.Println()

	fmt.Println("  [API]")
	fmt.Printf("    Base URL: %s\n", cfg.API.BaseURL)
	fmt.Printf("    Timeout:  %s\n", cfg.Timeout())
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Currency:         %s\n", cfg.General.Currency)
	fmt.Printf("    Default category: %s\n", cfg.General.DefaultCategory)
	fmt.Println()

	fmt.Println("  [Poll]")
	fmt.Printf("    Interval:        %s\n", cfg.PollInterval())
	fmt.Printf("    Refresh minimum: %s\n", cfg.RefreshMin())
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [Log]")
	fmt.Printf("    Level: %s\n", cfg.Log.Level)
	if cfg.Log.File != "" {
		fmt.Printf("    File:  %s\n", cfg.Log.File)
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Notify]")
	if cfg.Notify.AMQPURL != "" {
		fmt.Printf("    AMQP URL: %s\n", maskSecret(cfg.Notify.AMQPURL))
		fmt.Printf("    Exchange: %s\n", cfg.Notify.Exchange)
	} else {
		fmt.Println("    AMQP URL: not configured")
	}
	fmt.Println()

	fmt.Println("  Run `fintrack setup` to reconfigure.")
	return nil
}
