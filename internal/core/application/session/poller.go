package session

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// pollIncomingOffers periodically lists the incoming trade offers of an
// auto-accept account and accepts those that give away nothing from our
// side. Offers that would take our items and were not created by us are left
// untouched for the operator to review.
func (s *Service) pollIncomingOffers(ctx context.Context, mgr *Manager) {
	if s.poller == nil {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.acceptPendingOffers(ctx, mgr)
		}
	}
}

func (s *Service) acceptPendingOffers(ctx context.Context, mgr *Manager) {
	cookies := mgr.Cookies()
	if cookies.IsZero() {
		return
	}

	offers, err := s.poller.IncomingOffers(ctx, cookies)
	if err != nil {
		log.WithError(err).Debugf(
			"failed to list incoming offers for account %s", mgr.Account().Name,
		)
		return
	}

	for _, offer := range offers {
		if offer.ItemsToGive > 0 && !offer.IsOurOffer {
			continue
		}
		if err := s.poller.AcceptOffer(ctx, cookies, offer.OfferID); err != nil {
			log.WithError(err).Warnf(
				"failed to accept incoming offer %s for account %s",
				offer.OfferID, mgr.Account().Name,
			)
			continue
		}
		log.Debugf(
			"accepted incoming offer %s for account %s",
			offer.OfferID, mgr.Account().Name,
		)
	}
}
