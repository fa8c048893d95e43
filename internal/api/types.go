package api

import (
	"strings"

	"github.com/theirongolddev/fintrack/internal/model"
)

const statusSuccess = "success"

// statusResponse is the envelope shared by the auth endpoints.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s statusResponse) ok() bool {
	return strings.EqualFold(s.Status, statusSuccess)
}

// loginResponse is the body of POST /api/auth/login.
// Some deployments nest the profile under "user", others flatten it.
type loginResponse struct {
	statusResponse
	Token   string       `json:"token,omitempty"`
	Name    string       `json:"name,omitempty"`
	Email   string       `json:"email,omitempty"`
	Balance model.Amount `json:"balance"`
	User    *userProfile `json:"user,omitempty"`
}

type userProfile struct {
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Balance model.Amount `json:"balance"`
}

// userRecord flattens the response into the session's user record.
func (r loginResponse) userRecord(fallbackEmail string) model.UserRecord {
	u := model.UserRecord{
		Token:   r.Token,
		Name:    r.Name,
		Email:   r.Email,
		Balance: r.Balance.Decimal(),
	}
	if r.User != nil {
		if u.Name == "" {
			u.Name = r.User.Name
		}
		if u.Email == "" {
			u.Email = r.User.Email
		}
		if !r.Balance.Valid {
			u.Balance = r.User.Balance.Decimal()
		}
	}
	if u.Email == "" {
		u.Email = fallbackEmail
	}
	return u
}

// registerRequest omits the confirmation field, which never leaves the client.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// recordRequest is the body of POST /api/expenses and POST /api/incomes.
type recordRequest struct {
	Name     string       `json:"name"`
	Category string       `json:"category,omitempty"`
	Amount   model.Amount `json:"amount"`
	Date     string       `json:"date"`
}

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

func newRecordRequest(r model.NewRecord) recordRequest {
	return recordRequest{
		Name:     r.Name,
		Category: string(r.Category),
		Amount:   model.NewAmount(r.Amount),
		Date:     r.Date.UTC().Format(dateLayout),
	}
}

func (r recordRequest) record() model.FinancialRecord {
	return model.FinancialRecord{
		Name:     r.Name,
		Amount:   r.Amount,
		Date:     r.Date,
		Category: model.Category(r.Category),
	}
}
