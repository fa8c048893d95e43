// Package poller refreshes a session's records on a single shared schedule.
//
// One Poller serves every screen of a session. Polls never overlap: the
// ticker loop is sequential and manual refreshes join an in-flight poll
// instead of starting a second one. Cancelling the context given to Run
// stops polling.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("poller: already running")

// Fetcher loads the two record collections.
type Fetcher interface {
	ListExpenses(ctx context.Context) ([]model.FinancialRecord, error)
	ListIncomes(ctx context.Context) ([]model.FinancialRecord, error)
}

// Config controls polling cadence.
type Config struct {
	Interval time.Duration
	// RefreshEvery is the minimum spacing of manual refreshes.
	RefreshEvery time.Duration
	Logger       *zap.SugaredLogger
}

// Snapshot is the result of one poll. When Err is set, Expenses and Incomes
// hold the previous successful lists.
type Snapshot struct {
	Seq       int64
	Expenses  []model.FinancialRecord
	Incomes   []model.FinancialRecord
	FetchedAt time.Time
	Err       error
}

// Summary computes dashboard totals for the snapshot.
func (s Snapshot) Summary() model.Summary {
	return pipeline.Summarize(s.Expenses, s.Incomes)
}

// Poller fetches records on a fixed interval and fans results out to subscribers.
type Poller struct {
	fetch   Fetcher
	cfg     Config
	log     *zap.SugaredLogger
	limiter *rate.Limiter
	group   singleflight.Group
	running atomic.Bool

	mu        sync.RWMutex
	latest    Snapshot
	hasLatest bool
	seq       int64
	nextSubID int
	subs      map[int]chan Snapshot
}

// New returns a poller. Intervals under two seconds fall back to ten.
func New(f Fetcher, cfg Config) *Poller {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	return &Poller{
		fetch:   f,
		cfg:     cfg,
		log:     cfg.Logger,
		limiter: rate.NewLimiter(rate.Every(cfg.RefreshEvery), 1),
		subs:    make(map[int]chan Snapshot),
	}
}

// Interval returns the effective polling interval.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

// Run polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.log.Debugw("poller started", "interval", p.cfg.Interval)
	p.poll(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Debugw("poller stopped")
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Refresh polls now unless a manual refresh ran too recently, in which case
// the latest snapshot is returned and fresh is false.
func (p *Poller) Refresh(ctx context.Context) (snap Snapshot, fresh bool) {
	allowed := p.limiter.Allow()
	if latest, ok := p.Latest(); ok && !allowed {
		return latest, false
	}
	return p.poll(ctx), true
}

// Now polls immediately, bypassing the manual refresh limit. It is meant for
// follow-ups to writes, where the caller knows the data changed, so the
// result always comes from a fetch that started after the call.
func (p *Poller) Now(ctx context.Context) Snapshot {
	snap, shared := p.do(ctx)
	if !shared {
		return snap
	}
	// We may have joined a poll that fetched before the write. It has
	// finished now, so the next one starts after this call.
	snap, _ = p.do(ctx)
	return snap
}

// Latest returns the most recent snapshot, if any poll has completed.
func (p *Poller) Latest() (Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

// Subscribe returns a channel that receives every published snapshot.
// A subscriber that falls behind only sees the newest snapshot. The
// returned function unsubscribes and closes the channel.
func (p *Poller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	p.mu.Lock()
	p.nextSubID++
	id := p.nextSubID
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			close(ch)
			p.mu.Unlock()
		})
	}
}

// poll runs one fetch, joining an in-flight one if present.
func (p *Poller) poll(ctx context.Context) Snapshot {
	snap, _ := p.do(ctx)
	return snap
}

// do is poll that also reports whether the result was shared with other
// callers.
func (p *Poller) do(ctx context.Context) (Snapshot, bool) {
	v, _, shared := p.group.Do("poll", func() (any, error) {
		return p.fetchOnce(ctx), nil
	})
	return v.(Snapshot), shared
}

func (p *Poller) fetchOnce(ctx context.Context) Snapshot {
	start := time.Now()

	var expenses, incomes []model.FinancialRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = p.fetch.ListExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		incomes, err = p.fetch.ListIncomes(gctx)
		return err
	})
	err := g.Wait()

	// A poll torn down by cancellation is not news to anyone.
	if ctx.Err() != nil {
		latest, _ := p.Latest()
		latest.Err = ctx.Err()
		return latest
	}

	p.mu.Lock()
	p.seq++
	snap := Snapshot{Seq: p.seq, FetchedAt: time.Now()}
	if err != nil {
		snap.Expenses = p.latest.Expenses
		snap.Incomes = p.latest.Incomes
		snap.Err = err
	} else {
		snap.Expenses = expenses
		snap.Incomes = incomes
	}
	p.latest = snap
	p.hasLatest = true
	p.publishLocked(snap)
	p.mu.Unlock()

	if err != nil {
		p.log.Warnw("poll failed", "seq", snap.Seq, "error", err)
	} else {
		p.log.Debugw("poll finished",
			"seq", snap.Seq,
			"expenses", len(expenses),
			"incomes", len(incomes),
			"elapsed", time.Since(start),
		)
	}
	return snap
}

func (p *Poller) publishLocked(snap Snapshot) {
	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: replace the stale snapshot with the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
