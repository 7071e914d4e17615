package domain

import "time"

const (
	// OutcomeSent represents an offer that was sent but whose confirmation is
	// still missing.
	OutcomeSent OutcomeCode = iota
	// OutcomeConfirmed represents an offer that was sent and confirmed through
	// the mobile authenticator.
	OutcomeConfirmed
	// OutcomeSendFailed represents an offer abandoned after too many failed
	// send attempts.
	OutcomeSendFailed
	// OutcomeConfirmFailed represents an offer that was sent but whose
	// confirmation gave up, typically because the caller cancelled. The offer
	// can still be confirmed manually out-of-band.
	OutcomeConfirmFailed
)

type OutcomeCode int

func (c OutcomeCode) String() string {
	switch c {
	case OutcomeSent:
		return "sent"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeSendFailed:
		return "send_failed"
	case OutcomeConfirmFailed:
		return "confirm_failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a trade attempt reported to the caller.
type Outcome struct {
	Code    OutcomeCode
	OfferID string
	Reason  string
}

// TradeItem identifies the single tradeable item instance to be sent with an
// offer.
type TradeItem struct {
	AssetID    string
	MarketName string
}

// PendingOffer tracks an outgoing trade offer from creation until a terminal
// outcome. The OfferID is assigned only after a successful send.
type PendingOffer struct {
	OfferID     string
	AssetIDs    []string
	AccountName string
	TradeURL    string
	CreatedAt   time.Time
}

func NewPendingOffer(accountName, tradeURL string, assetIDs []string) *PendingOffer {
	return &PendingOffer{
		AssetIDs:    assetIDs,
		AccountName: accountName,
		TradeURL:    tradeURL,
		CreatedAt:   time.Now(),
	}
}

// FirstAssetID returns the id of the first asset in the offer, used as the
// key for send retry accounting.
func (p *PendingOffer) FirstAssetID() string {
	if len(p.AssetIDs) <= 0 {
		return ""
	}
	return p.AssetIDs[0]
}
