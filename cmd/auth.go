package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/validate"
)

var (
	flagEmail    string
	flagPassword string
	flagName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to your fintrack account",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a fintrack account",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	RunE:  runLogout,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&flagEmail, "email", "e", "", "Account email (prompted when omitted)")
		c.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted when omitted)")
	}
	registerCmd.Flags().StringVar(&flagName, "name", "", "Display name (prompted when omitted)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	creds := model.Credentials{Email: flagEmail, Password: flagPassword}
	if creds.Email == "" || creds.Password == "" {
		if err := credentialsForm(&creds).Run(); err != nil {
			return err
		}
	}

	ctx, cancel := commandContext(cmd, rt.cfg.Timeout())
	defer cancel()

	sess, err := rt.session.Login(ctx, creds)
	rt.recordLogin(creds.Email, err)
	if err != nil {
		var ve *validate.Error
		if errors.As(err, &ve) {
			return ve
		}
		return errors.New(api.UserMessage(err))
	}

	fmt.Println()
	fmt.Printf("  Logged in as %s\n", sess.DisplayName())
	if !sess.User.Balance.IsZero() {
		fmt.Printf("  Balance: %s\n", cli.FormatMoney(sess.User.Balance, rt.cfg.General.Currency))
	}
	fmt.Println()
	return nil
}

// recordLogin keeps the sign-in history. Attempts rejected locally never
// reached the API and are not recorded.
func (rt *runtime) recordLogin(email string, err error) {
	var ve *validate.Error
	if rt.store == nil || errors.As(err, &ve) {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	if serr := rt.store.RecordLogin(strings.TrimSpace(email), rt.cfg.API.BaseURL, outcome); serr != nil {
		rt.log.Warnw("recording login", "error", serr)
	}
}

func runRegister(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := model.Registration{Name: flagName, Email: flagEmail, Password: flagPassword, ConfirmPassword: flagPassword}
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		reg.ConfirmPassword = ""
		if err := registrationForm(&reg).Run(); err != nil {
			return err
		}
	}
	if err := validate.Registration(reg); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, rt.cfg.Timeout())
	defer cancel()

	msg, err := rt.auth.Register(ctx, reg)
	if err != nil {
		return errors.New(api.UserMessage(err))
	}
	if msg == "" {
		msg = "Registration successful"
	}

	fmt.Println()
	fmt.Printf("  %s\n", msg)
	fmt.Println("  Run `fintrack login` to sign in.")
	fmt.Println()
	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	was := rt.session.Current()
	rt.session.Logout()

	if was.IsAuthenticated {
		fmt.Printf("  Logged out %s\n", was.DisplayName())
	} else if !flagQuiet {
		fmt.Fprintln(os.Stderr, "  Not logged in.")
	}
	return nil
}

func credentialsForm(c *model.Credentials) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&c.Email).
				Validate(validate.Email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(validate.Password),
		),
	)
}

func registrationForm(r *model.Registration) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&r.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Email").
				Value(&r.Email).
				Validate(validate.Email),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&r.Password).
				Validate(validate.Password),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&r.ConfirmPassword).
				Validate(func(s string) error {
					if s != r.Password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
	)
}
