package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/fintrack/internal/api"
	"github.com/theirongolddev/fintrack/internal/apitest"
	"github.com/theirongolddev/fintrack/internal/model"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type noToken struct{}

func (noToken) Token() (string, error) { return "", api.ErrNotAuthenticated }

func newClient(t *testing.T, url string) *api.Client {
	t.Helper()
	c, err := api.NewClient(url, api.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:3000", "ftp://example.com", "http://"} {
		if _, err := api.NewClient(u); err == nil {
			t.Errorf("NewClient(%q) succeeded, want error", u)
		}
	}
}

func TestLogin(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Jane", "jane@example.com", "secret1")
	c := newClient(t, srv.URL)

	u, err := c.Login(context.Background(), model.Credentials{Email: "jane@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Token == "" || u.Name != "Jane" || u.Email != "jane@example.com" {
		t.Errorf("Login user = %+v", u)
	}
}

type countingTransport struct {
	requests int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.requests++
	return http.DefaultTransport.RoundTrip(r)
}

func TestWithHTTPClient(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Jane", "jane@example.com", "secret1")

	tr := &countingTransport{}
	c, err := api.NewClient(srv.URL, api.WithHTTPClient(&http.Client{Transport: tr}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.Login(context.Background(), model.Credentials{Email: "jane@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tr.requests != 1 {
		t.Errorf("custom transport saw %d requests, want 1", tr.requests)
	}
}

func TestLoginRejected(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Jane", "jane@example.com", "secret1")
	c := newClient(t, srv.URL)

	_, err := c.Login(context.Background(), model.Credentials{Email: "jane@example.com", Password: "wrong12"})
	var ae *api.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("Login err = %v, want AuthError", err)
	}
	if ae.Message != "Invalid email or password" {
		t.Errorf("message = %q", ae.Message)
	}
	if !errors.Is(err, api.ErrInvalidCredentials) {
		t.Error("AuthError does not unwrap to ErrInvalidCredentials")
	}
}

func TestLoginStatusNotSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed","message":"Account locked"}`))
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "secret1"})
	var ae *api.AuthError
	if !errors.As(err, &ae) || ae.Message != "Account locked" {
		t.Fatalf("Login err = %v, want AuthError(Account locked)", err)
	}
}

func TestLoginServerDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url).Login(context.Background(), model.Credentials{Email: "a@b.co", Password: "secret1"})
	var ne *api.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Login err = %v, want NetworkError", err)
	}
	if ne.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", ne.StatusCode)
	}
}

func TestRegister(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL)
	reg := model.Registration{Name: "Jane", Email: "jane@example.com", Password: "secret1", ConfirmPassword: "secret1"}

	if _, err := c.Register(context.Background(), reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := c.Register(context.Background(), reg)
	var ae *api.AuthError
	if !errors.As(err, &ae) || ae.Message != "User already exists" {
		t.Fatalf("second Register err = %v, want AuthError(User already exists)", err)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Jane", "jane@example.com", "secret1")
	c := newClient(t, srv.URL).WithTokens(staticToken(srv.Token("jane@example.com", time.Hour)))
	ctx := context.Background()
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := c.AddExpense(ctx, model.NewRecord{Name: "Lunch", Amount: decimal.NewFromInt(250), Category: model.CategoryFood, Date: date}); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if _, err := c.AddIncome(ctx, model.NewRecord{Kind: model.KindIncome, Name: "Salary", Amount: decimal.NewFromInt(1000), Category: model.CategoryFood, Date: date}); err != nil {
		t.Fatalf("AddIncome: %v", err)
	}

	expenses, err := c.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Category != model.CategoryFood || expenses[0].Amount.Decimal().IntPart() != 250 {
		t.Errorf("expenses = %+v", expenses)
	}

	incomes, err := c.ListIncomes(ctx)
	if err != nil {
		t.Fatalf("ListIncomes: %v", err)
	}
	if len(incomes) != 1 || incomes[0].Category != "" {
		t.Errorf("incomes = %+v, want one income without category", incomes)
	}
}

func TestMissingTokenSkipsRequest(t *testing.T) {
	srv := apitest.New(t)
	ctx := context.Background()

	for name, c := range map[string]*api.Client{
		"no token source": newClient(t, srv.URL),
		"anonymous":       newClient(t, srv.URL).WithTokens(noToken{}),
	} {
		if _, err := c.ListExpenses(ctx); !errors.Is(err, api.ErrNotAuthenticated) {
			t.Errorf("%s: ListExpenses err = %v, want ErrNotAuthenticated", name, err)
		}
		if _, err := c.AddIncome(ctx, model.NewRecord{Name: "x", Amount: decimal.NewFromInt(1)}); !errors.Is(err, api.ErrNotAuthenticated) {
			t.Errorf("%s: AddIncome err = %v, want ErrNotAuthenticated", name, err)
		}
	}
	if n := srv.Requests(); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestStatusMapping(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL).WithTokens(staticToken(srv.Token("jane@example.com", time.Hour)))
	ctx := context.Background()

	srv.FailWith(http.StatusForbidden)
	_, err := c.ListExpenses(ctx)
	if !api.IsAuth(err) || !errors.Is(err, api.ErrUnauthorized) {
		t.Errorf("403: err = %v, want AuthError(ErrUnauthorized)", err)
	}

	srv.FailWith(http.StatusInternalServerError)
	_, err = c.ListIncomes(ctx)
	var ne *api.NetworkError
	if !errors.As(err, &ne) || ne.StatusCode != http.StatusInternalServerError {
		t.Errorf("500: err = %v, want NetworkError(500)", err)
	}
	if api.IsAuth(err) {
		t.Error("500 classified as auth error")
	}
}

func TestBadTokenIsUnauthorized(t *testing.T) {
	srv := apitest.New(t)
	c := newClient(t, srv.URL).WithTokens(staticToken("not-a-jwt"))

	_, err := c.ListExpenses(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestLenientAmounts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"a","amount":"12.50","category":"Food"},{"name":"b","amount":"n/a","category":"Food"}]`))
	}))
	defer ts.Close()

	records, err := newClient(t, ts.URL).WithTokens(staticToken("t")).ListExpenses(context.Background())
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if !records[0].Amount.Valid || records[1].Amount.Valid {
		t.Errorf("validity = %v/%v, want true/false", records[0].Amount.Valid, records[1].Amount.Valid)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{api.ErrNotAuthenticated, "User is not authenticated."},
		{&api.AuthError{Err: api.ErrUnauthorized}, "Session expired, please log in again."},
		{&api.AuthError{Message: "Invalid email or password", Err: api.ErrInvalidCredentials}, "Invalid email or password"},
		{&api.NetworkError{Op: "login", Err: errors.New("dial tcp: refused")}, "An error occurred. Please try again."},
	}
	for _, tt := range tests {
		if got := api.UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
