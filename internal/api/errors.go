package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned, without issuing a request, when an
	// authenticated endpoint is called while no user is logged in.
	ErrNotAuthenticated = errors.New("api: user is not authenticated")
	// ErrSessionExpired indicates the bearer token is past its expiry.
	ErrSessionExpired = errors.New("api: session expired, please log in again")
	// ErrInvalidCredentials indicates the server rejected a login or sign-up.
	ErrInvalidCredentials = errors.New("api: credentials rejected")
	// ErrUnauthorized indicates the server answered 401 or 403.
	ErrUnauthorized = errors.New("api: unauthorized")
)

// AuthError reports a rejected login, a rejected sign-up, or an expired session.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError reports a transport failure, a non-2xx status, or a body
// that could not be decoded. StatusCode is 0 when no response arrived.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuth reports whether err means the user has to log in (again).
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) || errors.Is(err, ErrNotAuthenticated)
}

// UserMessage turns an error into a short line suitable for the UI.
func UserMessage(err error) string {
	var ae *AuthError
	var ne *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return "User is not authenticated."
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrUnauthorized):
		return "Session expired, please log in again."
	case errors.As(err, &ae):
		return ae.Error()
	case errors.As(err, &ne):
		return "An error occurred. Please try again."
	}
	return err.Error()
}
