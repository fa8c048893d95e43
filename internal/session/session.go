// Package session holds the authentication state shared by every screen.
//
// A Context has two states: Anonymous, the initial state, and Authenticated.
// Login moves Anonymous to Authenticated only when the API accepts the
// credentials; Logout always returns to Anonymous. Contexts are created by
// the command layer and passed explicitly to whatever needs them.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/validate"
)

// Authenticator exchanges credentials for a user record.
type Authenticator interface {
	Login(ctx context.Context, creds model.Credentials) (model.UserRecord, error)
}

// Listener is notified after every state change.
type Listener func(model.Session)

// Context is the single owner of the session state. It is safe for
// concurrent use.
type Context struct {
	auth Authenticator
	log  *zap.SugaredLogger
	now  func() time.Time

	mu        sync.RWMutex
	state     model.Session
	listeners []Listener
}

// New creates an Anonymous context.
func New(auth Authenticator, log *zap.SugaredLogger) *Context {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Context{auth: auth, log: log, now: time.Now}
}

// Login validates creds locally, then asks the API. Malformed input returns
// a *validate.Error without any request. Any API failure, including an
// unreachable network, returns an *api.AuthError and leaves the context
// Anonymous.
func (c *Context) Login(ctx context.Context, creds model.Credentials) (model.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validate.Credentials(creds); err != nil {
		return c.Current(), err
	}

	user, err := c.auth.Login(ctx, creds)
	if err != nil {
		c.log.Infow("login failed", "email", creds.Email, "error", err)
		var ae *api.AuthError
		if !errors.As(err, &ae) {
			err = &api.AuthError{Op: "login", Message: api.UserMessage(err), Err: err}
		}
		return c.Current(), err
	}

	c.log.Infow("logged in", "email", user.Email)
	return c.set(model.Session{IsAuthenticated: true, User: &user}), nil
}

// Restore rehydrates an Authenticated state from a stored user record.
// It reports false, and changes nothing, when the record has no token.
func (c *Context) Restore(user model.UserRecord) bool {
	if user.Token == "" {
		return false
	}
	c.set(model.Session{IsAuthenticated: true, User: &user})
	return true
}

// Logout clears the session. Calling it while Anonymous is a no-op.
func (c *Context) Logout() {
	c.mu.RLock()
	wasAuthenticated := c.state.IsAuthenticated
	c.mu.RUnlock()

	c.set(model.Session{})
	if wasAuthenticated {
		c.log.Infow("logged out")
	}
}

// Current returns a snapshot of the state. The returned User is a copy.
func (c *Context) Current() model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot(c.state)
}

// Token returns the bearer token for API calls. It fails with
// api.ErrNotAuthenticated while Anonymous and with an AuthError wrapping
// api.ErrSessionExpired once a JWT token is past its exp claim.
func (c *Context) Token() (string, error) {
	c.mu.RLock()
	var token string
	if c.state.IsAuthenticated && c.state.User != nil {
		token = c.state.User.Token
	}
	c.mu.RUnlock()

	if token == "" {
		return "", api.ErrNotAuthenticated
	}
	if exp, ok := TokenExpiry(token); ok && !exp.After(c.now()) {
		return "", &api.AuthError{Op: "token", Err: api.ErrSessionExpired}
	}
	return token, nil
}

// Subscribe registers fn for state changes.
func (c *Context) Subscribe(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Context) set(s model.Session) model.Session {
	c.mu.Lock()
	c.state = s
	out := snapshot(s)
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(out)
	}
	return out
}

func snapshot(s model.Session) model.Session {
	if s.User == nil {
		return model.Session{IsAuthenticated: s.IsAuthenticated}
	}
	u := *s.User
	return model.Session{IsAuthenticated: s.IsAuthenticated, User: &u}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and tokens without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	t, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return time.Time{}, false
	}
	exp := t.Expiration()
	if exp.IsZero() {
		return time.Time{}, false
	}
	return exp, true
}
