package alyx

import "errors"

var (
	// ErrUnreachable means the Alyx server could not be contacted at all.
	ErrUnreachable = errors.New("alyx server unreachable")

	// ErrBadCredentials means the server rejected the login.
	ErrBadCredentials = errors.New("alyx rejected credentials")
)
