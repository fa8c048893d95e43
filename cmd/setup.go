package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Load existing config or defaults
	cfg, _ := config.Load()

	fmt.Println()
	fmt.Println("  Welcome to fintrack!")
	fmt.Println()

	interval := strconv.Itoa(cfg.Poll.IntervalSec)

	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}
	categories := make([]huh.Option[string], 0, len(model.FilterCategories()))
	for _, c := range model.FilterCategories() {
		categories = append(categories, huh.NewOption(string(c), string(c)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Where the fintrack server runs.").
				Value(&cfg.API.BaseURL).
				Validate(validateBaseURL),
			huh.NewInput().
				Title("Currency").
				Description("Prefix shown before amounts, e.g. Ksh.").
				Value(&cfg.General.Currency),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default category filter").
				Options(categories...).
				Value(&cfg.General.DefaultCategory),
			huh.NewInput().
				Title("Refresh interval (seconds)").
				Value(&interval).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 2 {
						return errors.New("enter a whole number of at least 2")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&cfg.Appearance.Theme),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	cfg.Poll.IntervalSec, _ = strconv.Atoi(interval)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Save
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `fintrack setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}

func validateBaseURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// maskSecret hides everything but the edges of a credential.
func maskSecret(key string) string {
	if u, err := url.Parse(key); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			return u.String()
		}
	}
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
