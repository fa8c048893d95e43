package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/validate"
)

type fakeAuth struct {
	calls int
	user  model.UserRecord
	err   error
}

func (f *fakeAuth) Login(_ context.Context, creds model.Credentials) (model.UserRecord, error) {
	f.calls++
	if f.err != nil {
		return model.UserRecord{}, f.err
	}
	u := f.user
	u.Email = creds.Email
	return u, nil
}

var goodCreds = model.Credentials{Email: "jane@example.com", Password: "secret1"}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("jane").Expiration(exp).Build()
	if err != nil {
		t.Fatalf("building token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-key")))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return string(signed)
}

func TestNewIsAnonymous(t *testing.T) {
	c := New(&fakeAuth{}, nil)
	if diff := cmp.Diff(model.Session{}, c.Current()); diff != "" {
		t.Errorf("initial session mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginTransitionsOnce(t *testing.T) {
	auth := &fakeAuth{user: model.UserRecord{Token: "opaque", Name: "Jane"}}
	c := New(auth, nil)

	var changes []model.Session
	c.Subscribe(func(s model.Session) { changes = append(changes, s) })

	s, err := c.Login(context.Background(), goodCreds)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.IsAuthenticated || s.User == nil || s.User.Name != "Jane" {
		t.Fatalf("session after login = %+v", s)
	}
	if auth.calls != 1 {
		t.Errorf("authenticator calls = %d, want 1", auth.calls)
	}
	if len(changes) != 1 || !changes[0].IsAuthenticated {
		t.Errorf("listener saw %d changes, want exactly one authenticated", len(changes))
	}
}

func TestLoginMalformedEmailSkipsRequest(t *testing.T) {
	auth := &fakeAuth{user: model.UserRecord{Token: "opaque"}}
	c := New(auth, nil)

	for _, creds := range []model.Credentials{
		{Email: "not-an-email", Password: "secret1"},
		{Email: "jane@example.com", Password: "123"},
	} {
		_, err := c.Login(context.Background(), creds)
		var verr *validate.Error
		if !errors.As(err, &verr) {
			t.Errorf("Login(%+v) err = %v, want validation error", creds, err)
		}
	}
	if auth.calls != 0 {
		t.Errorf("authenticator called %d times, want 0", auth.calls)
	}
	if c.Current().IsAuthenticated {
		t.Error("invalid login authenticated the session")
	}
}

func TestLoginFailureStaysAnonymous(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rejected", &api.AuthError{Op: "login", Message: "Invalid email or password", Err: api.ErrInvalidCredentials}},
		{"unreachable", &api.NetworkError{Op: "login", Err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeAuth{err: tt.err}, nil)
			_, err := c.Login(context.Background(), goodCreds)

			var ae *api.AuthError
			if !errors.As(err, &ae) {
				t.Fatalf("err = %v, want AuthError", err)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("AuthError does not wrap %v", tt.err)
			}
			if c.Current().IsAuthenticated {
				t.Error("failed login authenticated the session")
			}
		})
	}
}

func TestLogoutIdempotent(t *testing.T) {
	c := New(&fakeAuth{user: model.UserRecord{Token: "opaque"}}, nil)
	if _, err := c.Login(context.Background(), goodCreds); err != nil {
		t.Fatalf("Login: %v", err)
	}

	c.Logout()
	first := c.Current()
	c.Logout()
	second := c.Current()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second logout changed state (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(model.Session{}, second); diff != "" {
		t.Errorf("state after logout (-want +got):\n%s", diff)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	c := New(&fakeAuth{}, nil)
	c.Restore(model.UserRecord{Token: "opaque", Name: "Jane"})

	s := c.Current()
	s.User.Name = "Mallory"
	if got := c.Current().User.Name; got != "Jane" {
		t.Errorf("mutating snapshot leaked into context: name = %q", got)
	}
}

func TestRestoreIgnoresEmptyToken(t *testing.T) {
	c := New(&fakeAuth{}, nil)
	if c.Restore(model.UserRecord{Name: "Jane"}) {
		t.Fatal("Restore accepted a record without token")
	}
	if c.Current().IsAuthenticated {
		t.Error("session authenticated without token")
	}
}

func TestToken(t *testing.T) {
	c := New(&fakeAuth{}, nil)
	if _, err := c.Token(); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Fatalf("anonymous Token err = %v, want ErrNotAuthenticated", err)
	}

	valid := signedToken(t, time.Now().Add(time.Hour))
	c.Restore(model.UserRecord{Token: valid})
	if got, err := c.Token(); err != nil || got != valid {
		t.Errorf("Token = %q, %v; want the stored token", got, err)
	}

	c.Restore(model.UserRecord{Token: signedToken(t, time.Now().Add(-time.Minute))})
	_, err := c.Token()
	if !errors.Is(err, api.ErrSessionExpired) || !api.IsAuth(err) {
		t.Errorf("expired Token err = %v, want AuthError(ErrSessionExpired)", err)
	}

	c.Restore(model.UserRecord{Token: "opaque-token"})
	if _, err := c.Token(); err != nil {
		t.Errorf("opaque Token err = %v, want nil", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok || !got.Equal(exp) {
		t.Errorf("TokenExpiry = %v, %v; want %v", got, ok, exp)
	}
	if _, ok := TokenExpiry("a.b.c"); ok {
		t.Error("TokenExpiry accepted garbage")
	}
}
