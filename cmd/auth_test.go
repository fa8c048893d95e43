package cmd

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/logger"
	"github.com/theirongolddev/fintrack/internal/store"
	"github.com/theirongolddev/fintrack/internal/validate"
)

func TestRecordLoginSkipsLocalValidation(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer func() { _ = st.Close() }()

	rt := &runtime{cfg: config.DefaultConfig(), log: logger.Nop(), store: st}

	rt.recordLogin("not-an-email", &validate.Error{Field: "email", Message: "please enter a valid email address"})
	rt.recordLogin("jane@example.com", &api.AuthError{Op: "login", Message: "Invalid email or password"})
	rt.recordLogin(" jane@example.com ", nil)

	logins, err := st.RecentLogins(10)
	if err != nil {
		t.Fatalf("RecentLogins: %v", err)
	}
	var got [][2]string
	for _, l := range logins {
		got = append(got, [2]string{l.Email, l.Outcome})
	}
	want := [][2]string{
		{"jane@example.com", "success"},
		{"jane@example.com", "failure"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("login history (-want +got):\n%s", diff)
	}
}

func TestRecordLoginWithoutStore(t *testing.T) {
	rt := &runtime{cfg: config.DefaultConfig(), log: logger.Nop()}
	// Must not panic.
	rt.recordLogin("jane@example.com", errors.New("boom"))
}
