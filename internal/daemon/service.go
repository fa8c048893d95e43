// Package daemon runs the background record monitor and its local HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/poller"
)

// EventSink receives every event the daemon emits, in addition to SSE subscribers.
type EventSink interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	EventsBuffer int
	APIURL       string
	UserEmail    string
	Sink         EventSink
	Logger       *zap.SugaredLogger
}

// Snapshot is a compact view of the records for status/event payloads.
type Snapshot struct {
	At           time.Time       `json:"at"`
	Expenses     int             `json:"expenses"`
	Incomes      int             `json:"incomes"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	Balance      decimal.Decimal `json:"balance"`
	Invalid      int             `json:"invalid_amounts,omitempty"`
	Categories   []CategoryTotal `json:"categories"`
}

// CategoryTotal is one bar of the per-category breakdown.
type CategoryTotal struct {
	Category model.Category  `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Expenses     int             `json:"expenses"`
	Incomes      int             `json:"incomes"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalIncome  decimal.Decimal `json:"total_income"`
}

func (d Delta) isZero() bool {
	return d.Expenses == 0 &&
		d.Incomes == 0 &&
		d.TotalExpense.IsZero() &&
		d.TotalIncome.IsZero()
}

// Event types.
const (
	EventSnapshot    = "snapshot"
	EventDelta       = "records_delta"
	EventAuthExpired = "auth_expired"
)

// Event is emitted whenever the record snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	Message   string    `json:"message,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	APIURL          string    `json:"api_url"`
	UserEmail       string    `json:"user_email,omitempty"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	poller *poller.Poller
	log    *zap.SugaredLogger

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	authFailed  bool
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service fed by p.
func New(p *poller.Poller, cfg Config) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	return &Service{
		cfg:       cfg,
		poller:    p,
		log:       cfg.Logger,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run serves HTTP and drives the poller until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	snaps, unsubscribe := s.poller.Subscribe()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("daemon http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.poller.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case snap := <-snaps:
				s.apply(gctx, snap)
			}
		}
	})

	s.log.Infow("daemon started", "addr", s.cfg.Addr, "interval", s.poller.Interval())
	return g.Wait()
}

// apply folds a poller snapshot into the daemon state and emits events.
func (s *Service) apply(ctx context.Context, ps poller.Snapshot) {
	now := ps.FetchedAt
	if now.IsZero() {
		now = time.Now()
	}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	s.lastPollAt = now
	s.pollCount++

	if ps.Err != nil {
		s.lastError = ps.Err.Error()
		if api.IsAuth(ps.Err) && !s.authFailed {
			s.authFailed = true
			s.nextEventID++
			ev = Event{
				ID:        s.nextEventID,
				Type:      EventAuthExpired,
				Timestamp: now,
				Snapshot:  s.snapshot,
				Message:   api.UserMessage(ps.Err),
			}
			publish = true
		}
		s.mu.Unlock()
		s.log.Warnw("daemon poll error", "error", ps.Err)
		if publish {
			s.publishEvent(ctx, ev)
		}
		return
	}

	snap := snapshotFromRecords(ps.Expenses, ps.Incomes, now)
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastError = ""
	s.authFailed = false

	if !prevExists {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventSnapshot, Timestamp: now, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: EventDelta, Timestamp: now, Snapshot: snap, Delta: delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ctx, ev)
	}
}

func snapshotFromRecords(expenses, incomes []model.FinancialRecord, at time.Time) Snapshot {
	sum := pipeline.Summarize(expenses, incomes)
	snap := Snapshot{
		At:           at,
		Expenses:     sum.ExpenseCount,
		Incomes:      sum.IncomeCount,
		TotalExpense: sum.TotalExpense,
		TotalIncome:  sum.TotalIncome,
		Balance:      sum.Balance,
		Invalid:      sum.Invalid,
	}
	for _, cs := range pipeline.BarDataset(expenses) {
		snap.Categories = append(snap.Categories, CategoryTotal{Category: cs.Category, Total: cs.Total})
	}
	return snap
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Expenses:     curr.Expenses - prev.Expenses,
		Incomes:      curr.Incomes - prev.Incomes,
		TotalExpense: curr.TotalExpense.Sub(prev.TotalExpense),
		TotalIncome:  curr.TotalIncome.Sub(prev.TotalIncome),
	}
}

func (s *Service) publishEvent(ctx context.Context, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()

	if s.cfg.Sink != nil {
		if err := s.cfg.Sink.Publish(ctx, ev.Type, ev); err != nil {
			s.log.Warnw("event sink publish failed", "type", ev.Type, "error", err)
		}
	}
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.poller.Interval().Seconds()),
		PollCount:       s.pollCount,
		APIURL:          s.cfg.APIURL,
		UserEmail:       s.cfg.UserEmail,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
