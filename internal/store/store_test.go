package store

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/model"
)

const testAPI = "http://localhost:3000"

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := openTest(t)

	if _, ok, err := s.LoadSession(testAPI); err != nil || ok {
		t.Fatalf("empty store LoadSession = ok:%v err:%v", ok, err)
	}

	want := model.UserRecord{Token: "tok", Name: "Jane", Email: "jane@example.com", Balance: decimal.RequireFromString("120.50")}
	if err := s.SaveSession(testAPI, want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, ok, err := s.LoadSession(testAPI)
	if err != nil || !ok {
		t.Fatalf("LoadSession = ok:%v err:%v", ok, err)
	}
	if got.Token != want.Token || got.Name != want.Name || got.Email != want.Email || !got.Balance.Equal(want.Balance) {
		t.Errorf("LoadSession = %+v, want %+v", got, want)
	}

	if _, ok, _ := s.LoadSession("https://other.example.com"); ok {
		t.Error("session leaked to a different API URL")
	}

	for i := 0; i < 2; i++ {
		if err := s.ClearSession(); err != nil {
			t.Fatalf("ClearSession #%d: %v", i+1, err)
		}
	}
	if _, ok, _ := s.LoadSession(testAPI); ok {
		t.Error("session still present after ClearSession")
	}
}

func TestSaveSessionReplaces(t *testing.T) {
	s := openTest(t)
	_ = s.SaveSession(testAPI, model.UserRecord{Token: "a", Email: "a@x.io"})
	_ = s.SaveSession(testAPI, model.UserRecord{Token: "b", Email: "b@x.io"})

	got, _, err := s.LoadSession(testAPI)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got.Token != "b" {
		t.Errorf("Token = %q, want b", got.Token)
	}
}

func TestReopenKeepsSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = s.SaveSession(testAPI, model.UserRecord{Token: "persisted", Email: "jane@example.com"})
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, ok, err := s.LoadSession(testAPI)
	if err != nil || !ok || got.Token != "persisted" {
		t.Errorf("LoadSession after reopen = %+v ok:%v err:%v", got, ok, err)
	}
}

func TestRecentLogins(t *testing.T) {
	s := openTest(t)
	_ = s.RecordLogin("jane@example.com", testAPI, "success")
	_ = s.RecordLogin("jane@example.com", testAPI, "rejected")

	logins, err := s.RecentLogins(10)
	if err != nil {
		t.Fatalf("RecentLogins: %v", err)
	}
	if len(logins) != 2 || logins[0].Outcome != "rejected" {
		t.Errorf("RecentLogins = %+v, want newest first", logins)
	}
}
