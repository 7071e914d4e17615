package session

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
)

// Service is the registry holding one session Manager per configured
// account. It replaces any ambient per-account maps: collaborators receive
// the registry by reference and look managers up through it.
type Service struct {
	managers map[string]*Manager
	byUserID map[int64]*Manager
	order    []string

	watcher      ports.SessionWatcher
	poller       ports.OfferPoller
	notifier     ports.Notifier
	policy       domain.RetryPolicy
	pollInterval time.Duration
	limiter      ratelimit.Limiter
}

// Opts defines the parameters needed for creating a session service with
// NewService.
type Opts struct {
	Accounts      []domain.Account
	Authenticator ports.Authenticator
	CodeGenerator ports.CodeGenerator
	Watcher       ports.SessionWatcher
	Poller        ports.OfferPoller
	Notifier      ports.Notifier
	Policy        domain.RetryPolicy
	PollInterval  time.Duration
}

func NewService(opts Opts) (*Service, error) {
	if opts.Authenticator == nil {
		return nil, fmt.Errorf("missing authenticator")
	}
	if opts.CodeGenerator == nil {
		return nil, fmt.Errorf("missing code generator")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("missing notifier")
	}
	if len(opts.Accounts) <= 0 {
		return nil, fmt.Errorf("missing accounts")
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Minute
	}

	managers := make(map[string]*Manager)
	byUserID := make(map[int64]*Manager)
	order := make([]string, 0, len(opts.Accounts))
	for _, account := range opts.Accounts {
		if err := account.Validate(); err != nil {
			return nil, err
		}
		if _, ok := managers[account.Name]; ok {
			return nil, fmt.Errorf("duplicated account %s", account.Name)
		}
		if _, ok := byUserID[account.UserID]; ok {
			return nil, fmt.Errorf("duplicated user id %d", account.UserID)
		}
		mgr := newManager(
			account, opts.Authenticator, opts.CodeGenerator,
			opts.Notifier, opts.Policy,
		)
		managers[account.Name] = mgr
		byUserID[account.UserID] = mgr
		order = append(order, account.Name)
	}

	// one login per bootstrap delay across accounts, to avoid platform-side
	// rate limiting and simultaneous-login flags
	bootstrapDelay := opts.Policy.BootstrapDelay
	if bootstrapDelay <= 0 {
		bootstrapDelay = time.Second
	}
	limiter := ratelimit.New(1, ratelimit.Per(bootstrapDelay))

	return &Service{
		managers:     managers,
		byUserID:     byUserID,
		order:        order,
		watcher:      opts.Watcher,
		poller:       opts.Poller,
		notifier:     opts.Notifier,
		policy:       opts.Policy,
		pollInterval: pollInterval,
		limiter:      limiter,
	}, nil
}

// Bootstrap logs every configured account in, sequentially and in
// declaration order, pacing logins with the inter-account rate limiter. A
// failing account is retried unboundedly before moving to the next one, and
// no failure is ever fatal to the process. It also starts the expiry watcher
// and the incoming-offer pollers.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.watcher != nil {
		go s.watchExpiry(ctx)
	}

	for _, name := range s.order {
		if ctx.Err() != nil {
			return
		}
		mgr := s.managers[name]

		s.limiter.Take()
		if err := mgr.loginUntilSuccess(ctx); err != nil {
			// context cancelled, shutdown in progress
			return
		}
		log.Infof("account %s bootstrapped", name)

		if mgr.Account().AcceptOffers {
			go s.pollIncomingOffers(ctx, mgr)
		}
	}
}

// Manager returns the session manager of the given account.
func (s *Service) Manager(accountName string) (*Manager, bool) {
	mgr, ok := s.managers[accountName]
	return mgr, ok
}

// ManagerByUserID returns the session manager of the account owned by the
// given user id.
func (s *Service) ManagerByUserID(userID int64) (*Manager, bool) {
	mgr, ok := s.byUserID[userID]
	return mgr, ok
}

// Info is a portable snapshot of an account session for the operator
// interface.
type Info struct {
	AccountName  string
	UserID       int64
	Status       domain.SessionStatus
	AcceptOffers bool
}

func (s *Service) ListSessions() []Info {
	list := make([]Info, 0, len(s.order))
	for _, name := range s.order {
		mgr := s.managers[name]
		account := mgr.Account()
		list = append(list, Info{
			AccountName:  account.Name,
			UserID:       account.UserID,
			Status:       mgr.Status(),
			AcceptOffers: account.AcceptOffers,
		})
	}
	return list
}

// watchExpiry consumes the transport's expiry signals and dispatches the
// recovery of the affected account. The channel is subscribed exactly once
// per process.
func (s *Service) watchExpiry(ctx context.Context) {
	events := s.watcher.SessionExpiry()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			mgr, found := s.managers[event.AccountName]
			if !found {
				log.Warnf(
					"ignoring expiry signal for unknown account %s",
					event.AccountName,
				)
				continue
			}
			go mgr.handleExpired(ctx)
		}
	}
}
