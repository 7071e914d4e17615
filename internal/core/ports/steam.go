package ports

import "context"

// Credentials carries everything the platform needs for one login attempt.
// The TotpCode is time-based and must be regenerated for every attempt.
type Credentials struct {
	AccountName string
	Password    string
	TotpCode    string
}

// Cookies is the opaque session blob returned by a successful login. It is
// replaced wholesale on every (re)login.
type Cookies struct {
	AccountName string
	Values      []string
}

func (c Cookies) IsZero() bool {
	return len(c.Values) <= 0
}

// Item identifies one asset added to an outgoing offer.
type Item struct {
	AssetID   string
	AppID     uint32
	ContextID string
}

// Authenticator performs the raw login RPC against the platform.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Cookies, error)
}

// CodeGenerator produces time-based one-time codes from an account's shared
// secret.
type CodeGenerator interface {
	TotpCode(sharedSecret string) (string, error)
}

// OfferHandle is an outgoing trade offer under construction. Send performs
// the network call with the cookies passed at call time, so that a retry
// after a re-login uses the freshest session.
type OfferHandle interface {
	AddItems(items []Item)
	Send(ctx context.Context, cookies Cookies) (string, error)
	ID() string
	// IsGlitched reports a degenerate offer empty of items on both sides,
	// which some platform states report as unconfirmable.
	IsGlitched() bool
}

// OfferFactory builds offer handles bound to a destination trade URL.
type OfferFactory interface {
	NewOffer(tradeURL string) (OfferHandle, error)
}

// Confirmer drives the mobile-authenticator confirmation of a sent offer.
// An ordinary rejection is reported as *domain.ConfirmRejectedError; any
// other error means the session itself is broken.
type Confirmer interface {
	Confirm(ctx context.Context, cookies Cookies, identitySecret, offerID string) error
}

// IncomingOffer is the subset of a received trade offer needed to decide
// whether it can be auto-accepted.
type IncomingOffer struct {
	OfferID        string
	ItemsToGive    int
	ItemsToReceive int
	IsOurOffer     bool
}

// OfferPoller lists and accepts incoming offers for accounts configured with
// auto-accept.
type OfferPoller interface {
	IncomingOffers(ctx context.Context, cookies Cookies) ([]IncomingOffer, error)
	AcceptOffer(ctx context.Context, cookies Cookies, offerID string) error
}

// SessionEvent signals that the platform invalidated the session of the
// given account asynchronously.
type SessionEvent struct {
	AccountName string
}

// SessionWatcher exposes the stream of session-expiry signals coming from
// the transport. Subscribed once per process at pool construction.
type SessionWatcher interface {
	SessionExpiry() <-chan SessionEvent
}
