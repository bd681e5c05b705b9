package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("invalid token")

	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("account already exists")
	ErrNotFound      = errors.New("account not found")
	ErrForbidden     = errors.New("access denied")

	// ErrWrongPassword is returned by ChangePassword when the supplied
	// current password does not match the stored hash.
	ErrWrongPassword = errors.New("current password is incorrect")
)
