package trade

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
	"github.com/tradebot-network/tradebot-daemon/pkg/stats"
)

// send drives the bounded send-retry loop for a single offer. The same offer
// handle is retried as is, same item set and same destination, but the
// session cookies are re-read from the manager on every attempt so that a
// retry after a re-login uses the freshest session. Failure counts are keyed
// by the first asset id of the offer and cleared on success.
func (s *Service) send(
	ctx context.Context,
	mgr *session.Manager,
	offer ports.OfferHandle,
	pending *domain.PendingOffer,
) (string, error) {
	assetID := pending.FirstAssetID()
	accountName := mgr.Account().Name

	for {
		offerID, err := offer.Send(ctx, mgr.Cookies())
		if err == nil {
			pending.OfferID = offerID
			s.retries.Reset(assetID)
			stats.IncOfferSent(accountName)
			return offerID, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		failures := s.retries.Increment(assetID)
		if !s.policy.ShouldRetry(failures) {
			stats.IncOfferAbandoned(accountName)
			log.WithError(err).Errorf(
				"sending process unsuccessful after %d attempts, the asset id probably changed",
				failures,
			)
			return "", fmt.Errorf("%w: asset %s", domain.ErrSendAbandoned, assetID)
		}

		stats.IncSendRetry(accountName)
		log.WithError(err).Warnf(
			"sending process unsuccessful, trying again in %s",
			s.policy.DelayFor(domain.SendRetry),
		)
		if err := wait(ctx, s.policy.DelayFor(domain.SendRetry)); err != nil {
			return "", err
		}
	}
}
