package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
)

type fakeFetcher struct {
	expenseCalls atomic.Int64
	incomeCalls  atomic.Int64

	mu       sync.Mutex
	expenses []model.FinancialRecord
	incomes  []model.FinancialRecord
	err      error
	gate     chan struct{}
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFetcher) ListExpenses(ctx context.Context) ([]model.FinancialRecord, error) {
	f.expenseCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expenses, f.err
}

func (f *fakeFetcher) ListIncomes(ctx context.Context) ([]model.FinancialRecord, error) {
	f.incomeCalls.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.incomes, f.err
}

func newFetcher() *fakeFetcher {
	return &fakeFetcher{
		expenses: []model.FinancialRecord{{Name: "Lunch", Amount: model.AmountOf("250"), Category: model.CategoryFood}},
		incomes:  []model.FinancialRecord{{Name: "Salary", Amount: model.AmountOf("1000")}},
	}
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(newFetcher(), Config{Interval: time.Second})
	if p.Interval() != 10*time.Second {
		t.Errorf("Interval = %v, want 10s fallback", p.Interval())
	}
	p = New(newFetcher(), Config{Interval: 30 * time.Second})
	if p.Interval() != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", p.Interval())
	}
}

func TestRunPublishesAndStopsOnCancel(t *testing.T) {
	f := newFetcher()
	p := New(f, Config{})
	p.cfg.Interval = 10 * time.Millisecond

	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	first := receive(t, ch)
	if first.Err != nil || len(first.Expenses) != 1 || len(first.Incomes) != 1 {
		t.Fatalf("first snapshot = %+v", first)
	}
	second := receive(t, ch)
	if second.Seq <= first.Seq {
		t.Errorf("Seq did not advance: %d then %d", first.Seq, second.Seq)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	calls := f.expenseCalls.Load()
	time.Sleep(50 * time.Millisecond)
	if f.expenseCalls.Load() != calls {
		t.Error("poller kept fetching after cancel")
	}
}

func TestRunRejectsSecondRun(t *testing.T) {
	p := New(newFetcher(), Config{})
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()
	receive(t, ch)

	if err := p.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run err = %v, want ErrAlreadyRunning", err)
	}
}

func TestFailedPollKeepsStaleRecords(t *testing.T) {
	f := newFetcher()
	p := New(f, Config{RefreshEvery: time.Nanosecond})
	ctx := context.Background()

	good, _ := p.Refresh(ctx)
	if good.Err != nil {
		t.Fatalf("first poll failed: %v", good.Err)
	}

	authErr := &api.AuthError{Op: "list expenses", Err: api.ErrUnauthorized}
	f.setErr(authErr)
	time.Sleep(time.Millisecond)

	bad, fresh := p.Refresh(ctx)
	if !fresh {
		t.Fatal("refresh unexpectedly throttled")
	}
	if !api.IsAuth(bad.Err) {
		t.Errorf("Err = %v, want auth error", bad.Err)
	}
	if len(bad.Expenses) != 1 || bad.Expenses[0].Name != "Lunch" {
		t.Errorf("stale expenses = %+v, want previous list", bad.Expenses)
	}
	if latest, _ := p.Latest(); latest.Seq != bad.Seq {
		t.Errorf("Latest().Seq = %d, want %d", latest.Seq, bad.Seq)
	}
}

func TestRefreshJoinsInFlightPoll(t *testing.T) {
	f := newFetcher()
	f.gate = make(chan struct{})
	p := New(f, Config{RefreshEvery: time.Nanosecond})

	var wg sync.WaitGroup
	results := make([]Snapshot, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.poll(context.Background())
		}(i)
	}

	// Let every goroutine reach the singleflight before releasing the fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.expenseCalls.Load(); n != 1 {
		t.Errorf("ListExpenses called %d times, want 1", n)
	}
	for i, r := range results {
		if r.Seq != results[0].Seq {
			t.Errorf("result %d has Seq %d, want shared %d", i, r.Seq, results[0].Seq)
		}
	}
}

func TestRefreshThrottled(t *testing.T) {
	f := newFetcher()
	p := New(f, Config{RefreshEvery: time.Hour})
	ctx := context.Background()

	first, fresh := p.Refresh(ctx)
	if !fresh {
		t.Fatal("first refresh throttled")
	}
	second, fresh := p.Refresh(ctx)
	if fresh {
		t.Error("second refresh within the window was not throttled")
	}
	if second.Seq != first.Seq {
		t.Errorf("throttled refresh Seq = %d, want latest %d", second.Seq, first.Seq)
	}
	if n := f.expenseCalls.Load(); n != 1 {
		t.Errorf("ListExpenses called %d times, want 1", n)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := New(newFetcher(), Config{})
	ch, unsubscribe := p.Subscribe()
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing with no subscribers must not panic.
	p.Refresh(context.Background())
}

func TestSlowSubscriberGetsNewest(t *testing.T) {
	p := New(newFetcher(), Config{RefreshEvery: time.Nanosecond})
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	var last Snapshot
	for i := 0; i < 3; i++ {
		last = p.poll(context.Background())
	}
	got := receive(t, ch)
	if got.Seq != last.Seq {
		t.Errorf("subscriber got Seq %d, want newest %d", got.Seq, last.Seq)
	}
}

func TestSnapshotSummary(t *testing.T) {
	p := New(newFetcher(), Config{})
	snap := p.poll(context.Background())
	sum := snap.Summary()
	if sum.Balance.StringFixed(2) != "750.00" {
		t.Errorf("Balance = %s, want 750.00", sum.Balance.StringFixed(2))
	}
}

func TestNowIgnoresThrottle(t *testing.T) {
	f := newFetcher()
	p := New(f, Config{RefreshEvery: time.Hour})
	ctx := context.Background()

	first, _ := p.Refresh(ctx)
	second := p.Now(ctx)
	if second.Seq <= first.Seq {
		t.Errorf("Now() Seq = %d, want newer than %d", second.Seq, first.Seq)
	}
	if n := f.expenseCalls.Load(); n != 2 {
		t.Errorf("ListExpenses called %d times, want 2", n)
	}
}

// readThenBlockFetcher snapshots its expenses before waiting on gate, like a
// request whose response was produced before a concurrent write landed.
type readThenBlockFetcher struct {
	mu       sync.Mutex
	expenses []model.FinancialRecord
	started  chan struct{}
	gate     chan struct{}
	calls    atomic.Int64
}

func (f *readThenBlockFetcher) ListExpenses(ctx context.Context) ([]model.FinancialRecord, error) {
	f.mu.Lock()
	read := append([]model.FinancialRecord(nil), f.expenses...)
	f.mu.Unlock()

	if f.calls.Add(1) == 1 {
		close(f.started)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return read, nil
}

func (f *readThenBlockFetcher) ListIncomes(context.Context) ([]model.FinancialRecord, error) {
	return nil, nil
}

func TestNowAfterWriteSkipsStaleInFlightPoll(t *testing.T) {
	f := &readThenBlockFetcher{started: make(chan struct{}), gate: make(chan struct{})}
	p := New(f, Config{RefreshEvery: time.Nanosecond})
	ctx := context.Background()

	refreshed := make(chan Snapshot, 1)
	go func() {
		snap, _ := p.Refresh(ctx)
		refreshed <- snap
	}()
	<-f.started

	// The write lands while the first poll is still in flight.
	f.mu.Lock()
	f.expenses = append(f.expenses, model.FinancialRecord{Name: "Fuel", Amount: model.AmountOf("20"), Category: model.CategoryFuel})
	f.mu.Unlock()

	now := make(chan Snapshot, 1)
	go func() { now <- p.Now(ctx) }()

	// Let Now join the in-flight poll before it is released.
	time.Sleep(50 * time.Millisecond)
	close(f.gate)

	if got := receive(t, refreshed); len(got.Expenses) != 0 {
		t.Fatalf("in-flight poll saw %d expenses, want 0", len(got.Expenses))
	}
	got := receive(t, now)
	if len(got.Expenses) != 1 {
		t.Errorf("Now() after write returned %d expenses, want 1", len(got.Expenses))
	}
}
