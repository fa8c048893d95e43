package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/session"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"whoami"},
	Short:   "Show the current login and recent sign-in attempts",
	RunE:    runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println()
	fmt.Println(cli.RenderTitle("FINTRACK STATUS"))
	fmt.Println()

	fmt.Printf("  API:  %s\n", rt.cfg.API.BaseURL)

	cur := rt.session.Current()
	if !cur.IsAuthenticated {
		fmt.Println("  User: not logged in")
		fmt.Println()
		fmt.Println("  Log in with:")
		fmt.Println("    fintrack login                    " + cli.RenderMuted("(interactive)"))
		fmt.Println("    fintrack login -e you@example.com " + cli.RenderMuted("(prompts for password)"))
	} else {
		fmt.Printf("  User: %s <%s>\n", cur.DisplayName(), cur.User.Email)
		if exp, ok := session.TokenExpiry(cur.User.Token); ok {
			if exp.After(time.Now()) {
				fmt.Printf("  Token expires %s\n", cli.FormatAgo(exp))
			} else {
				fmt.Println(cli.RenderWarning("Session expired, please log in again."))
			}
		}
	}
	fmt.Println()

	if rt.store == nil {
		return nil
	}
	logins, err := rt.store.RecentLogins(5)
	if err != nil {
		rt.log.Warnw("reading login history", "error", err)
		return nil
	}
	if len(logins) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(logins))
	for _, l := range logins {
		rows = append(rows, []string{cli.FormatAgo(l.At), l.Email, l.Outcome})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Recent sign-ins",
		Headers: []string{"When", "Email", "Outcome"},
		Rows:    rows,
	}))
	return nil
}
