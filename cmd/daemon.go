package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/notify"
	"github.com/theirongolddev/fintrack/internal/poller"
)

// daemonState is written next to the running daemon so `daemon status` and
// `daemon stop` can find it. The file exists only while the daemon runs.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	APIURL    string    `json:"api_url"`
	UserEmail string    `json:"user_email"`
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonStateFile    string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch your records in the background and serve them over HTTP/SSE",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonStateFile, "state-file", filepath.Join(config.CacheDir(), "fintrackd.json"), "Daemon state file (pid and address)")
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")

	daemonCmd.Flags().DurationVar(&flagDaemonInterval, "interval", 0, "Polling interval (default from config)")
	daemonCmd.Flags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")
	daemonCmd.Flags().StringVar(&flagDaemonLogFile, "log-file", filepath.Join(config.CacheDir(), "fintrackd.log"), "Log file for detached mode")
	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if _, running, err := readDaemonState(flagDaemonStateFile); err != nil {
		return err
	} else if running {
		return errors.New("daemon already running, see `fintrack daemon status`")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.requireLogin(); err != nil {
		return err
	}
	if flagDaemonDetach {
		return startDetached(daemonAddr(rt.cfg))
	}
	return serveDaemon(rt)
}

// startDetached re-runs the current command line without --detach, with
// output going to the log file.
func startDetached(addr string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, withoutDetach(os.Args[1:])...) //nolint:gosec // re-runs our own invocation
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  API: http://%s/v1/status\n", addr)
	fmt.Printf("  Log: %s\n", flagDaemonLogFile)
	return nil
}

func serveDaemon(rt *runtime) error {
	user := rt.session.Current().User
	addr := daemonAddr(rt.cfg)

	interval := flagDaemonInterval
	if interval <= 0 {
		interval = rt.cfg.PollInterval()
	}
	buffer := flagDaemonEventsBuffer
	if buffer <= 0 {
		buffer = rt.cfg.Daemon.EventsBuffer
	}

	cfg := daemon.Config{
		Addr:         addr,
		EventsBuffer: buffer,
		APIURL:       rt.cfg.API.BaseURL,
		UserEmail:    user.Email,
		Logger:       rt.log,
	}
	if url := rt.cfg.Notify.AMQPURL; url != "" {
		pub, err := notify.Dial(url, rt.cfg.Notify.Exchange, rt.log)
		if err != nil {
			return fmt.Errorf("connect event broker: %w", err)
		}
		defer func() { _ = pub.Close() }()
		cfg.Sink = pub
	}

	state := daemonState{
		PID:       os.Getpid(),
		Addr:      addr,
		StartedAt: time.Now(),
		APIURL:    rt.cfg.API.BaseURL,
		UserEmail: user.Email,
	}
	if err := writeDaemonState(flagDaemonStateFile, state); err != nil {
		return err
	}
	defer func() { _ = os.Remove(flagDaemonStateFile) }()

	p := poller.New(rt.records, poller.Config{
		Interval:     interval,
		RefreshEvery: rt.cfg.RefreshMin(),
		Logger:       rt.log,
	})
	svc := daemon.New(p, cfg)

	fmt.Printf("  fintrack daemon listening on http://%s\n", addr)
	fmt.Printf("  Polling %s every %s as %s\n", rt.cfg.API.BaseURL, p.Interval(), user.Email)
	if cfg.Sink != nil {
		fmt.Printf("  Forwarding events to exchange %q\n", rt.cfg.Notify.Exchange)
	}
	fmt.Println("  Stop with: fintrack daemon stop")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func daemonAddr(cfg config.Config) string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	return cfg.Daemon.Addr
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	st, running, err := readDaemonState(flagDaemonStateFile)
	if err != nil {
		return err
	}
	if !running {
		fmt.Println("  Daemon: not running")
		return nil
	}

	fmt.Printf("  Daemon PID: %d (up %s)\n", st.PID, time.Since(st.StartedAt).Round(time.Second))
	fmt.Printf("  Address: http://%s\n", st.Addr)

	ctx, cancel := commandContext(cmd, 2*time.Second)
	defer cancel()
	status, err := fetchDaemonStatus(ctx, st.Addr)
	if err != nil {
		fmt.Printf("  API status: %v\n", err)
		return nil
	}

	if status.LastPollAt.IsZero() {
		fmt.Println("  Last poll: pending")
	} else {
		fmt.Printf("  Last poll: %s\n", cli.FormatAgo(status.LastPollAt))
	}
	fmt.Printf("  Poll count: %d (every %ds)\n", status.PollCount, status.PollIntervalSec)
	fmt.Printf("  Watching: %s as %s\n", status.APIURL, status.UserEmail)
	fmt.Printf("  Expenses: %d totalling %s\n", status.Summary.Expenses, cli.FormatDecimal(status.Summary.TotalExpense))
	fmt.Printf("  Incomes: %d totalling %s\n", status.Summary.Incomes, cli.FormatDecimal(status.Summary.TotalIncome))
	fmt.Printf("  Balance: %s\n", cli.FormatDecimal(status.Summary.Balance))
	fmt.Printf("  Events: %d buffered, %d stream subscribers\n", status.EventCount, status.SubscriberCount)
	if status.LastError != "" {
		fmt.Printf("  Last error: %s\n", status.LastError)
	}
	return nil
}

func fetchDaemonStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed response (%w)", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	st, running, err := readDaemonState(flagDaemonStateFile)
	if err != nil {
		return err
	}
	if !running {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(st.PID) {
			_ = os.Remove(flagDaemonStateFile)
			fmt.Printf("  Stopped daemon (pid %d)\n", st.PID)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit in time", st.PID)
}

func withoutDetach(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// readDaemonState loads the state file. A missing file, or one left behind
// by a dead process, reports not running; the stale file is removed.
func readDaemonState(path string) (daemonState, bool, error) {
	var st daemonState
	//nolint:gosec // state path is configured by the local user
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal(data, &st); err != nil || st.PID <= 0 {
		_ = os.Remove(path)
		return st, false, nil
	}
	if !processAlive(st.PID) {
		_ = os.Remove(path)
		return st, false, nil
	}
	return st, true, nil
}

func writeDaemonState(path string, st daemonState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
