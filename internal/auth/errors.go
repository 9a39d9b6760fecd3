package auth

import "fmt"

// AuthError is any authentication failure that cannot be narrowed further:
// missing tokens, failed refresh, broken token storage.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Msg, e.Err)
	}
	return "auth: " + e.Msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// LoginError covers credential-invalid, MFA-invalid and missing-ticket
// failures during the SSO flow.
type LoginError struct {
	Msg string
	Err error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login: %s: %v", e.Msg, e.Err)
	}
	return "login: " + e.Msg
}

func (e *LoginError) Unwrap() error { return e.Err }
