package identity

import "errors"

// Business-rule failures are sentinel values so handlers can dispatch on
// errors.Is and render a stable message. Infrastructure faults are wrapped
// with context instead and rendered generically.
var (
	// ErrInvalidInput signals malformed or missing caller data.
	ErrInvalidInput = errors.New("email and password are required")

	// ErrEmailTaken signals a registration against an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already in use")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The two cases must stay indistinguishable to callers so responses
	// cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
