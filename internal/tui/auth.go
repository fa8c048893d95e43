package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
	"github.com/theirongolddev/fintrack/internal/validate"
)

const (
	authModeLogin    = "login"
	authModeRegister = "register"
)

// authValues backs the login/sign-up form. It lives behind a pointer so the
// form keeps writing to the same fields as the App value is copied.
type authValues struct {
	mode     string
	name     string
	email    string
	password string
	confirm  string
}

type authState struct {
	form *huh.Form
	vals *authValues
	busy bool
	err  string
}

type loginDoneMsg struct {
	sess model.Session
	err  error
}

type registerDoneMsg struct {
	email   string
	message string
	err     error
}

func newAuthState(email string) authState {
	vals := &authValues{mode: authModeLogin, email: email}
	return authState{form: newAuthForm(vals), vals: vals}
}

func newAuthForm(v *authValues) *huh.Form {
	notEmpty := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New(field + " is required")
			}
			return nil
		}
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Welcome to fintrack").
				Options(
					huh.NewOption("Log in", authModeLogin),
					huh.NewOption("Create an account", authModeRegister),
				).
				Value(&v.mode),
		),
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&v.email).Validate(validate.Email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&v.password),
		).WithHideFunc(func() bool { return v.mode != authModeLogin }),
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&v.name).Validate(notEmpty("name")),
			huh.NewInput().Title("Email").Value(&v.email).Validate(validate.Email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&v.password).Validate(validate.Password),
			huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&v.confirm).
				Validate(func(s string) error {
					if s != v.password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return v.mode != authModeRegister }),
	).WithShowHelp(true)
}

func (a App) updateAuthForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.auth.busy {
		return a, nil
	}

	form, cmd := a.auth.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.auth.form = f
	}

	switch a.auth.form.State {
	case huh.StateCompleted:
		a.auth.busy = true
		a.auth.err = ""
		v := *a.auth.vals
		if v.mode == authModeRegister {
			return a, a.registerCmd(v)
		}
		return a, a.loginCmd(v)
	case huh.StateAborted:
		return a, tea.Quit
	}
	return a, cmd
}

func (a App) loginCmd(v authValues) tea.Cmd {
	sess, timeout := a.sess, a.opts.Timeout
	creds := model.Credentials{Email: v.email, Password: v.password}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s, err := sess.Login(ctx, creds)
		return loginDoneMsg{sess: s, err: err}
	}
}

func (a App) registerCmd(v authValues) tea.Cmd {
	auth, timeout := a.opts.Auth, a.opts.Timeout
	reg := model.Registration{Name: v.name, Email: v.email, Password: v.password, ConfirmPassword: v.confirm}
	return func() tea.Msg {
		if err := validate.Registration(reg); err != nil {
			return registerDoneMsg{email: reg.Email, err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		msg, err := auth.Register(ctx, reg)
		return registerDoneMsg{email: reg.Email, message: msg, err: err}
	}
}

func (a App) handleLoginDone(msg loginDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		email := a.auth.vals.email
		a.auth = newAuthState(email)
		a.auth.err = authErrorText(msg.err)
		a.resizeForms()
		return a, a.auth.form.Init()
	}

	a.auth.busy = false
	a.activeTab = tabHome
	return a, tea.Batch(
		a.setFlash("Welcome, "+msg.sess.DisplayName(), false),
		a.startPolling(),
	)
}

func (a App) handleRegisterDone(msg registerDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.auth = newAuthState(msg.email)
		a.auth.vals.mode = authModeRegister
		a.auth.err = authErrorText(msg.err)
		a.resizeForms()
		return a, a.auth.form.Init()
	}

	a.auth = newAuthState(msg.email)
	a.resizeForms()
	text := msg.message
	if text == "" {
		text = "Registration successful"
	}
	return a, tea.Batch(a.setFlash(text+", please log in", false), a.auth.form.Init())
}

// authErrorText keeps validation messages as they are and turns API
// failures into their user-facing line.
func authErrorText(err error) string {
	var ve *validate.Error
	if errors.As(err, &ve) {
		return ve.Message
	}
	return api.UserMessage(err)
}

func (a App) viewAuth() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 2)

	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	errStyle := lipgloss.NewStyle().Foreground(t.Orange)
	infoStyle := lipgloss.NewStyle().Foreground(t.Accent)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ fintrack"))
	b.WriteString(subtitleStyle.Render(" · personal finances"))
	b.WriteString("\n\n")

	switch {
	case a.auth.busy:
		b.WriteString(a.spinner.View())
		b.WriteString(subtitleStyle.Render(" Contacting server..."))
	default:
		b.WriteString(a.auth.form.View())
	}

	if a.auth.err != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(a.auth.err))
	} else if a.flash != "" {
		b.WriteString("\n")
		if a.flashErr {
			b.WriteString(errStyle.Render(a.flash))
		} else {
			b.WriteString(infoStyle.Render(a.flash))
		}
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}
