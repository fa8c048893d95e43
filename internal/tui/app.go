// Package tui provides the interactive Bubble Tea dashboard for fintrack.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/poller"
	"github.com/theirongolddev/fintrack/internal/session"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, reg model.Registration) (string, error)
}

// Recorder reads and writes the signed-in user's records.
type Recorder interface {
	poller.Fetcher
	Add(ctx context.Context, r model.NewRecord) (model.FinancialRecord, error)
}

// Options wires the dashboard to a session and its API.
type Options struct {
	Session  *session.Context
	Auth     Registrar
	Records  Recorder
	Poll     poller.Config
	Currency string
	Category model.Category // initial Transactions filter
	Timeout  time.Duration
	Logger   *zap.SugaredLogger

	// SaveTheme persists a theme picked on the Profile tab. Optional.
	SaveTheme func(name string) error
}

// snapshotMsg carries a poller snapshot. gen ties it to one polling run so
// snapshots from a run stopped by logout are dropped.
type snapshotMsg struct {
	gen  int
	snap poller.Snapshot
}

type pollStoppedMsg struct{ gen int }

type refreshDoneMsg struct {
	gen   int
	fresh bool
}

type clearFlashMsg struct{ id int }

// pollRun is one running poller, started at login and stopped at logout.
type pollRun struct {
	poller      *poller.Poller
	snaps       <-chan poller.Snapshot
	cancel      context.CancelFunc
	unsubscribe func()
}

func (r *pollRun) stop() {
	r.cancel()
	r.unsubscribe()
}

// App is the root Bubble Tea model.
type App struct {
	opts Options
	sess *session.Context
	log  *zap.SugaredLogger

	// Polling
	run        *pollRun
	gen        int
	snap       poller.Snapshot
	loaded     bool
	refreshing bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	spinner   spinner.Model

	flash    string
	flashErr bool
	flashID  int

	// Per-screen state
	auth  authState
	home  homeState
	tx    txState
	add   addState
	stats statsState
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 160

	minContentHeight = 5
	flashDuration    = 4 * time.Second
)

// NewApp creates the dashboard. A session that is already Authenticated
// (restored from disk) starts polling right away; otherwise the login
// form is shown first.
func NewApp(opts Options) App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Poll.Logger == nil {
		opts.Poll.Logger = opts.Logger
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	now := time.Now()
	return App{
		opts:    opts,
		sess:    opts.Session,
		log:     opts.Logger,
		spinner: sp,
		auth:    newAuthState(""),
		home:    homeState{year: now.Year(), month: now.Month()},
		tx:      newTxState(opts.Category),
		add:     newAddState(),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnableMouseCellMotion, a.spinner.Tick}
	if a.sess.Current().IsAuthenticated {
		cmds = append(cmds, startPollingCmd())
	} else {
		cmds = append(cmds, a.auth.form.Init())
	}
	return tea.Batch(cmds...)
}

// startPollingMsg asks Update to start a polling run. Starting from Update
// keeps the run owned by the model.
type startPollingMsg struct{}

func startPollingCmd() tea.Cmd {
	return func() tea.Msg { return startPollingMsg{} }
}

func (a *App) startPolling() tea.Cmd {
	a.stopPolling()
	a.gen++
	a.loaded = false

	p := poller.New(a.opts.Records, a.opts.Poll)
	snaps, unsubscribe := p.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	a.run = &pollRun{poller: p, snaps: snaps, cancel: cancel, unsubscribe: unsubscribe}

	gen, log := a.gen, a.log
	runCmd := func() tea.Msg {
		if err := p.Run(ctx); err != nil {
			log.Warnw("poller stopped", "error", err)
		}
		return pollStoppedMsg{gen: gen}
	}
	return tea.Batch(runCmd, waitForSnapshot(gen, snaps))
}

func (a *App) stopPolling() {
	if a.run != nil {
		a.run.stop()
		a.run = nil
	}
}

// waitForSnapshot blocks until the poller publishes the next snapshot.
func waitForSnapshot(gen int, ch <-chan poller.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{gen: gen, snap: snap}
	}
}

func (a App) refreshCmd() tea.Cmd {
	if a.run == nil {
		return nil
	}
	p, gen, timeout := a.run.poller, a.gen, a.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, fresh := p.Refresh(ctx)
		return refreshDoneMsg{gen: gen, fresh: fresh}
	}
}

func (a *App) setFlash(msg string, isErr bool) tea.Cmd {
	a.flashID++
	a.flash = msg
	a.flashErr = isErr
	id := a.flashID
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return clearFlashMsg{id: id} })
}

// expire ends the session after the API rejected the token.
func (a *App) expire(err error) tea.Cmd {
	a.log.Infow("session ended by api", "error", err)
	a.logout()
	return tea.Batch(a.setFlash(api.UserMessage(err), true), a.auth.form.Init())
}

func (a *App) logout() {
	a.stopPolling()
	a.sess.Logout()
	a.snap = poller.Snapshot{}
	a.loaded = false
	a.refreshing = false
	a.activeTab = 0
	a.auth = newAuthState("")
	a.add = newAddState()
	a.tx = newTxState(a.opts.Category)
	a.resizeForms()
}

func (a *App) resizeForms() {
	w := min(a.width-4, 72)
	if w < 20 {
		return
	}
	if a.auth.form != nil {
		a.auth.form = a.auth.form.WithWidth(w)
	}
	if a.add.form != nil {
		a.add.form = a.add.form.WithWidth(w)
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resizeForms()
		return a, nil

	case startPollingMsg:
		return a, a.startPolling()

	case snapshotMsg:
		if msg.gen != a.gen || a.run == nil {
			return a, nil
		}
		if api.IsAuth(msg.snap.Err) {
			return a, a.expire(msg.snap.Err)
		}
		a.snap = msg.snap
		a.loaded = true
		a.refreshing = false
		cmds := []tea.Cmd{waitForSnapshot(a.gen, a.run.snaps)}
		if msg.snap.Err != nil {
			cmds = append(cmds, a.setFlash(api.UserMessage(msg.snap.Err), true))
		}
		return a, tea.Batch(cmds...)

	case pollStoppedMsg:
		return a, nil

	case refreshDoneMsg:
		if msg.gen == a.gen && !msg.fresh {
			a.refreshing = false
			return a, a.setFlash("Already up to date", false)
		}
		return a, nil

	case clearFlashMsg:
		if msg.id == a.flashID {
			a.flash = ""
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case loginDoneMsg:
		return a.handleLoginDone(msg)

	case registerDoneMsg:
		return a.handleRegisterDone(msg)

	case addDoneMsg:
		return a.handleAddDone(msg)

	case tea.MouseMsg:
		return a.handleMouse(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	// Forward unhandled messages (cursor blinks etc.) to the active form.
	if !a.sess.Current().IsAuthenticated {
		return a.updateAuthForm(msg)
	}
	if a.activeTab == tabAdd {
		return a.updateAddForm(msg)
	}
	return a, nil
}

const (
	tabHome = iota
	tabTransactions
	tabStatistics
	tabAdd
	tabProfile
)

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global: quit
	if key == "ctrl+c" {
		a.stopPolling()
		return a, tea.Quit
	}

	if !a.sess.Current().IsAuthenticated {
		return a.updateAuthForm(msg)
	}

	// The add form owns the keyboard; esc leaves it.
	if a.activeTab == tabAdd && !a.showHelp {
		if key == "esc" {
			a.activeTab = tabHome
			return a, nil
		}
		return a.updateAddForm(msg)
	}

	if a.activeTab == tabTransactions && a.tx.searching {
		return a.updateTxSearch(msg)
	}

	// Help toggle
	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		a.stopPolling()
		return a, tea.Quit
	case "r":
		if a.refreshing || a.run == nil {
			return a, nil
		}
		a.refreshing = true
		return a, a.refreshCmd()
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
			if idx == tabAdd {
				return a, a.add.form.Init()
			}
			return a, nil
		}
	}

	switch a.activeTab {
	case tabHome:
		a.home.handleKey(key)
	case tabTransactions:
		return a.handleTxKey(key)
	case tabStatistics:
		a.stats.handleKey(key)
	case tabProfile:
		return a.handleProfileKey(key)
	}
	return a, nil
}

func (a App) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.sess.Current().IsAuthenticated || a.showHelp {
		return a, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if a.activeTab == tabTransactions {
			a.tx.moveCursor(-1, len(a.txRecords()))
		}
	case tea.MouseButtonWheelDown:
		if a.activeTab == tabTransactions {
			a.tx.moveCursor(1, len(a.txRecords()))
		}
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
				if tab == tabAdd {
					return a, a.add.form.Init()
				}
			}
		}
	}
	return a, nil
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}

	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}

	if !a.sess.Current().IsAuthenticated {
		return a.viewAuth()
	}

	if !a.loaded {
		return a.viewLoading()
	}

	if a.showHelp {
		return a.viewHelp()
	}

	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := a.height
	if h < 5 {
		h = 5
	}

	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  fintrack needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)

	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ fintrack"))
	b.WriteString(subtitleStyle.Render(" · " + a.sess.Current().DisplayName()))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	b.WriteString(subtitleStyle.Render(" Fetching expenses and incomes..."))

	card := cardStyle.Render(b.String())

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"h t s a p", "Jump to tab"},
			{"← → tab", "Previous / Next tab"},
			{"[ ]", "Previous / Next month (Home)"},
			{"j k", "Scroll transactions"},
		}},
		{"Actions", []struct{ key, desc string }{
			{"f F", "Cycle category filter"},
			{"i", "Expenses / Incomes"},
			{"/", "Search by name"},
			{"m", "Month / all time (Statistics)"},
			{"c C", "Cycle category (Statistics)"},
			{"T", "Next theme (Profile)"},
			{"L", "Log out (Profile)"},
			{"r", "Refresh now"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	card := cardStyle.Render(b.String())

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	// 1. Header
	header := components.RenderTabBar(a.activeTab, w)

	// 2. Status bar
	age := ""
	if !a.snap.FetchedAt.IsZero() {
		age = cli.FormatAgo(a.snap.FetchedAt)
	}
	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		User:       a.sess.Current().DisplayName(),
		DataAge:    age,
		Refreshing: a.refreshing,
		Message:    a.flash,
		IsError:    a.flashErr,
	})

	// 3. Content zone height
	contentH := h - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	// 4. Tab content
	var content string
	switch a.activeTab {
	case tabHome:
		content = a.renderHomeTab(cw)
	case tabTransactions:
		content = a.renderTransactionsTab(cw, contentH)
	case tabStatistics:
		content = a.renderStatisticsTab(cw)
	case tabAdd:
		content = a.renderAddTab(cw)
	case tabProfile:
		content = a.renderProfileTab(cw)
	}

	// 5. Truncate + pad to exactly contentH lines
	content = padHeight(truncateHeight(content, contentH), contentH)

	// 6. Fill each line to full width with background
	content = fillLinesWithBackground(content, cw, t.Background)

	// 7. Center when the terminal is wider than the content
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)

	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Helpers ────────────────────────────────────────────────────

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		placed := lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
		result.WriteString(placed)
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW

		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}
