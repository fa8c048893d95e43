package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/logger"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/poller"
	"github.com/theirongolddev/fintrack/internal/session"
	"github.com/theirongolddev/fintrack/internal/store"
)

var (
	flagAPIURL   string
	flagQuiet    bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "fintrack",
	Short:         "Personal finance tracker CLI",
	Long:          "Track expenses and incomes against your fintrack account: totals, categories, charts and more.",
	RunE:          runSummary,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Finance API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// runtime is the wiring shared by every command: one session context, the
// API client bound to it, and the local store that outlives the process.
type runtime struct {
	cfg     config.Config
	log     *zap.SugaredLogger
	store   *store.Store
	auth    *api.Client
	records *api.Client
	session *session.Context
}

// loadConfig applies command-line overrides on top of the loaded config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagAPIURL != "" {
		cfg.API.BaseURL = flagAPIURL
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newRuntime builds the runtime and restores any stored login for the
// configured API. adjust runs on the loaded config before anything is built.
func newRuntime(adjust ...func(*config.Config)) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(&cfg)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	sess := session.New(client, log)
	rt := &runtime{
		cfg:     cfg,
		log:     log,
		auth:    client,
		records: client.WithTokens(sess),
		session: sess,
	}

	st, err := store.Open(config.StorePath())
	if err != nil {
		// Without a store the session only lasts for this invocation.
		log.Warnw("session store unavailable", "path", config.StorePath(), "error", err)
		return rt, nil
	}
	rt.store = st

	if user, ok, err := st.LoadSession(cfg.API.BaseURL); err != nil {
		log.Warnw("loading stored session", "error", err)
	} else if ok {
		sess.Restore(user)
	}

	sess.Subscribe(rt.persist)
	return rt, nil
}

// persist mirrors session changes into the store.
func (rt *runtime) persist(s model.Session) {
	if rt.store == nil {
		return
	}
	var err error
	if s.IsAuthenticated && s.User != nil {
		err = rt.store.SaveSession(rt.cfg.API.BaseURL, *s.User)
	} else {
		err = rt.store.ClearSession()
	}
	if err != nil {
		rt.log.Warnw("persisting session", "error", err)
	}
}

func (rt *runtime) Close() {
	if rt.store != nil {
		_ = rt.store.Close()
	}
	_ = rt.log.Sync()
}

// requireLogin fails early for commands that only make sense with a user.
func (rt *runtime) requireLogin() error {
	if !rt.session.Current().IsAuthenticated {
		return errors.New("not logged in. Run `fintrack login` first")
	}
	return nil
}

// apiError turns an API failure into a CLI error. Authentication failures
// end the stored session.
func (rt *runtime) apiError(err error) error {
	if err == nil {
		return nil
	}
	if api.IsAuth(err) || errors.Is(err, api.ErrNotAuthenticated) {
		rt.session.Logout()
		return fmt.Errorf("%s Run `fintrack login`", api.UserMessage(err))
	}
	var ne *api.NetworkError
	if errors.As(err, &ne) {
		rt.log.Debugw("api failure", "op", ne.Op, "status", ne.StatusCode, "error", ne.Err)
		return errors.New(api.UserMessage(err))
	}
	return err
}

// fetch runs one poll of both collections.
func (rt *runtime) fetch() (poller.Snapshot, error) {
	if err := rt.requireLogin(); err != nil {
		return poller.Snapshot{}, err
	}
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Fetching records from %s...\n", rt.cfg.API.BaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*rt.cfg.Timeout())
	defer cancel()

	p := poller.New(rt.records, poller.Config{
		Interval: rt.cfg.PollInterval(),
		Logger:   rt.log,
	})
	snap, _ := p.Refresh(ctx)
	if snap.Err != nil {
		return snap, rt.apiError(snap.Err)
	}
	return snap, nil
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
