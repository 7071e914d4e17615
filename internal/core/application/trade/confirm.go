package trade

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
	"github.com/tradebot-network/tradebot-daemon/pkg/stats"
)

// confirm drives the mobile-authenticator confirmation loop for a sent
// offer. Retries are unbounded, the check being idempotent, and only caller
// cancellation stops the loop. An ordinary rejection waits the confirmation
// delay and retries; any other failure is treated as a broken session: cool
// down, force a fresh login and confirm again.
func (s *Service) confirm(
	ctx context.Context,
	mgr *session.Manager,
	offer ports.OfferHandle,
	pending *domain.PendingOffer,
) error {
	account := mgr.Account()

	for {
		err := s.confirmer.Confirm(
			ctx, mgr.Cookies(), account.IdentitySecret, pending.OfferID,
		)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var rejected *domain.ConfirmRejectedError
		if errors.As(err, &rejected) {
			if offer.IsGlitched() {
				log.Warnf(
					"[#%s] offer is glitched (empty from both sides)",
					pending.OfferID,
				)
			}
			stats.IncConfirmRetry(account.Name)
			log.Warnf(
				"[#%s] failed to confirm the offer, retrying in %s",
				pending.OfferID, s.policy.DelayFor(domain.ConfirmRetry),
			)
			if err := wait(ctx, s.policy.DelayFor(domain.ConfirmRetry)); err != nil {
				return err
			}
			continue
		}

		log.WithError(err).Warnf(
			"[#%s] confirmation hit a session fault, forcing re-login",
			pending.OfferID,
		)
		if err := wait(ctx, s.policy.ReauthCooldown); err != nil {
			return err
		}
		if err := mgr.Login(ctx); err != nil {
			log.WithError(err).Warnf(
				"forced re-login failed for account %s", account.Name,
			)
		}
	}
}
