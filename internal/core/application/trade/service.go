package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
	"github.com/tradebot-network/tradebot-daemon/pkg/stats"
)

const (
	// AppID is the fixed application id of the items traded on the platform.
	AppID uint32 = 730
	// InventoryContextID is the fixed inventory context the assets live in.
	InventoryContextID = "2"
)

// Service is the entry point of the offer pipeline: it resolves the account
// session, builds the offer, drives the send loop and then the confirmation
// loop, and reports the outcome.
type Service struct {
	sessions  *session.Service
	offers    ports.OfferFactory
	confirmer ports.Confirmer
	notifier  ports.Notifier
	policy    domain.RetryPolicy
	retries   *domain.RetryCounter
}

func NewService(
	sessions *session.Service,
	offers ports.OfferFactory,
	confirmer ports.Confirmer,
	notifier ports.Notifier,
	policy domain.RetryPolicy,
) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("missing session service")
	}
	if offers == nil {
		return nil, fmt.Errorf("missing offer factory")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("missing confirmer")
	}
	if notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}

	return &Service{
		sessions:  sessions,
		offers:    offers,
		confirmer: confirmer,
		notifier:  notifier,
		policy:    policy,
		retries:   domain.NewRetryCounter(),
	}, nil
}

// SendOffer creates an offer containing exactly the given asset, sends it to
// the destination trade URL on behalf of the account owned by userID, then
// drives its confirmation. Terminal confirmation failure is logged and
// reported in the outcome but never surfaced as an error, since the operator
// can still confirm the offer manually out-of-band.
func (s *Service) SendOffer(
	ctx context.Context, item domain.TradeItem, tradeURL string, userID int64,
) (domain.Outcome, error) {
	mgr, ok := s.sessions.ManagerByUserID(userID)
	if !ok {
		return domain.Outcome{}, domain.ErrUnknownAccount
	}
	account := mgr.Account()

	logger := log.WithFields(log.Fields{
		"trade":   uuid.NewString(),
		"account": account.Name,
	})

	offer, err := s.offers.NewOffer(tradeURL)
	if err != nil {
		logger.WithError(err).Errorf(
			"failed to create the offer for %s#%s", item.MarketName, item.AssetID,
		)
		return domain.Outcome{
			Code: domain.OutcomeSendFailed, Reason: err.Error(),
		}, nil
	}
	offer.AddItems([]ports.Item{{
		AssetID:   item.AssetID,
		AppID:     AppID,
		ContextID: InventoryContextID,
	}})
	pending := domain.NewPendingOffer(
		account.Name, tradeURL, []string{item.AssetID},
	)

	offerID, err := s.send(ctx, mgr, offer, pending)
	if err != nil {
		logger.WithError(err).Errorf(
			"failed to send the offer for %s#%s", item.MarketName, item.AssetID,
		)
		s.notifier.Notify(
			fmt.Sprintf("Failed to send offer for %s", item.MarketName),
			"offerSendFailed",
		)
		return domain.Outcome{
			Code: domain.OutcomeSendFailed, Reason: err.Error(),
		}, nil
	}
	logger.Infof("[#%s] offer created for %s", offerID, item.MarketName)

	// let the platform register the offer server-side, immediate confirmation
	// attempts are unreliable
	if err := wait(ctx, s.policy.SettleDelay); err != nil {
		return domain.Outcome{
			Code: domain.OutcomeSent, OfferID: offerID, Reason: err.Error(),
		}, nil
	}

	if err := s.confirm(ctx, mgr, offer, pending); err != nil {
		logger.WithError(err).Warnf("[#%s] confirmation not completed", offerID)
		return domain.Outcome{
			Code: domain.OutcomeConfirmFailed, OfferID: offerID,
			Reason: err.Error(),
		}, nil
	}

	logger.Infof("[#%s] offer confirmed for %s", offerID, item.MarketName)
	stats.IncConfirmation(account.Name)
	return domain.Outcome{
		Code: domain.OutcomeConfirmed, OfferID: offerID,
	}, nil
}

// wait sleeps for the given duration unless the context is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
