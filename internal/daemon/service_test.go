package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/poller"
)

type nopFetcher struct{}

func (nopFetcher) ListExpenses(context.Context) ([]model.FinancialRecord, error) { return nil, nil }
func (nopFetcher) ListIncomes(context.Context) ([]model.FinancialRecord, error)  { return nil, nil }

type memorySink struct {
	mu    sync.Mutex
	types []string
}

func (m *memorySink) Publish(_ context.Context, eventType string, _ any) error {
	m.mu.Lock()
	m.types = append(m.types, eventType)
	m.mu.Unlock()
	return nil
}

func newService(cfg Config) *Service {
	return New(poller.New(nopFetcher{}, poller.Config{}), cfg)
}

func expenses(amounts ...string) []model.FinancialRecord {
	out := make([]model.FinancialRecord, len(amounts))
	for i, a := range amounts {
		out[i] = model.FinancialRecord{Name: "e", Amount: model.AmountOf(a), Category: model.CategoryFood}
	}
	return out
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Expenses:     10,
		Incomes:      2,
		TotalExpense: decimal.RequireFromString("1050.25"),
		TotalIncome:  decimal.RequireFromString("3000"),
	}
	curr := Snapshot{
		Expenses:     12,
		Incomes:      2,
		TotalExpense: decimal.RequireFromString("1310.75"),
		TotalIncome:  decimal.RequireFromString("3000"),
	}

	delta := diffSnapshots(prev, curr)
	if delta.Expenses != 2 {
		t.Fatalf("Expenses delta = %d, want 2", delta.Expenses)
	}
	if delta.Incomes != 0 {
		t.Fatalf("Incomes delta = %d, want 0", delta.Incomes)
	}
	if !delta.TotalExpense.Equal(decimal.RequireFromString("260.5")) {
		t.Fatalf("TotalExpense delta = %s, want 260.5", delta.TotalExpense)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots produced a non-zero delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := newService(Config{EventsBuffer: 2})

	s.publishEvent(context.Background(), Event{ID: 1})
	s.publishEvent(context.Background(), Event{ID: 2})
	s.publishEvent(context.Background(), Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestApplyEmitsSnapshotThenDeltas(t *testing.T) {
	sink := &memorySink{}
	s := newService(Config{Sink: sink})
	ctx := context.Background()
	now := time.Now()

	s.apply(ctx, poller.Snapshot{Seq: 1, Expenses: expenses("100"), FetchedAt: now})
	s.apply(ctx, poller.Snapshot{Seq: 2, Expenses: expenses("100"), FetchedAt: now})
	s.apply(ctx, poller.Snapshot{Seq: 3, Expenses: expenses("100", "50"), FetchedAt: now})

	want := []string{EventSnapshot, EventDelta}
	if len(sink.types) != len(want) || sink.types[0] != want[0] || sink.types[1] != want[1] {
		t.Fatalf("sink events = %v, want %v", sink.types, want)
	}

	st := s.snapshotStatus()
	if st.PollCount != 3 || st.Summary.Expenses != 2 {
		t.Errorf("status = %+v", st)
	}
	if len(st.Summary.Categories) != len(model.Categories()) {
		t.Errorf("categories = %d, want every category", len(st.Summary.Categories))
	}
}

func TestApplyAuthErrorEmitsOnce(t *testing.T) {
	sink := &memorySink{}
	s := newService(Config{Sink: sink})
	ctx := context.Background()
	authErr := &api.AuthError{Err: api.ErrSessionExpired}

	s.apply(ctx, poller.Snapshot{Seq: 1, Err: authErr})
	s.apply(ctx, poller.Snapshot{Seq: 2, Err: authErr})

	if len(sink.types) != 1 || sink.types[0] != EventAuthExpired {
		t.Fatalf("sink events = %v, want one %s", sink.types, EventAuthExpired)
	}
	if st := s.snapshotStatus(); st.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newService(Config{APIURL: "http://api.test", UserEmail: "jane@example.com"})
	s.apply(context.Background(), poller.Snapshot{Seq: 1, Expenses: expenses("12.50"), FetchedAt: time.Now()})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if st.UserEmail != "jane@example.com" || st.Summary.Expenses != 1 {
		t.Errorf("status = %+v", st)
	}
	if !st.Summary.TotalExpense.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("TotalExpense = %s, want 12.5", st.Summary.TotalExpense)
	}
	if st.PollIntervalSec != 10 {
		t.Errorf("PollIntervalSec = %d, want 10", st.PollIntervalSec)
	}
}
