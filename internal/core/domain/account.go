package domain

import "fmt"

const (
	// StatusUnauthenticated is the status of an account session that never
	// logged in, or whose bootstrap login hasn't succeeded yet.
	StatusUnauthenticated SessionStatus = iota
	// StatusAuthenticated is the status of an account session owning a valid
	// set of cookies.
	StatusAuthenticated
	// StatusReauthenticating is the status of an account session whose cookies
	// were invalidated by the platform and that is logging back in.
	StatusReauthenticating
)

// SessionStatus represents the different statuses the authenticated session
// of an account can assume during the process lifetime.
type SessionStatus int

func (s SessionStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusReauthenticating:
		return "reauthenticating"
	default:
		return "unknown"
	}
}

// Account defines the static configuration of a trading account. It is
// immutable once loaded from the accounts file.
type Account struct {
	Name           string
	Password       string
	SharedSecret   string
	IdentitySecret string
	ProxyURL       string
	AcceptOffers   bool
	UserID         int64
}

func (a Account) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("missing account name")
	}
	if a.Password == "" {
		return fmt.Errorf("missing password for account %s", a.Name)
	}
	if a.SharedSecret == "" {
		return fmt.Errorf("missing shared secret for account %s", a.Name)
	}
	if a.IdentitySecret == "" {
		return fmt.Errorf("missing identity secret for account %s", a.Name)
	}
	if a.UserID <= 0 {
		return fmt.Errorf("missing user id for account %s", a.Name)
	}
	return nil
}
