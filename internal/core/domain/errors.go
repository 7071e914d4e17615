package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAccount is thrown when a trade is requested for a user id with
	// no matching account configuration.
	ErrUnknownAccount = errors.New("no account configured for the given user id")
	// ErrSendAbandoned is thrown when sending an offer keeps failing after the
	// maximum number of attempts, the asset id having probably changed
	// server-side.
	ErrSendAbandoned = errors.New("offer abandoned after too many failed send attempts")
)

// AuthError wraps a failure of the login call, either credentials/guard
// rejection or a transport failure.
type AuthError struct {
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed for %s: %s", e.Account, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ConfirmRejectedError wraps an ordinary confirmation rejection, as opposed
// to a transport/session fault that requires a forced re-login.
type ConfirmRejectedError struct {
	OfferID string
	Err     error
}

func (e *ConfirmRejectedError) Error() string {
	return fmt.Sprintf("confirmation rejected for offer %s: %s", e.OfferID, e.Err)
}

func (e *ConfirmRejectedError) Unwrap() error {
	return e.Err
}
