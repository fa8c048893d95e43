// Package model defines domain types for fintrack sessions and records.
package model

import "github.com/shopspring/decimal"

// UserRecord is the user returned by a successful login.
type UserRecord struct {
	Token   string
	Name    string
	Email   string
	Balance decimal.Decimal
}

// Session is a point-in-time view of the authentication state.
// User is nil whenever IsAuthenticated is false.
type Session struct {
	IsAuthenticated bool
	User            *UserRecord
}

// DisplayName returns the user's name, falling back to the email.
func (s Session) DisplayName() string {
	if s.User == nil {
		return ""
	}
	if s.User.Name != "" {
		return s.User.Name
	}
	return s.User.Email
}

// Credentials is the payload of a login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the payload of a sign-up attempt.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}
