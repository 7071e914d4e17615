package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
	"github.com/tradebot-network/tradebot-daemon/pkg/stats"
)

// Manager owns the authentication lifecycle of a single account: login,
// expiry recovery and credential renewal. Exactly one manager exists per
// account for the process lifetime. Dependents never cache cookies, they
// read them lazily through Cookies() so that a re-login is visible to every
// later send or confirm attempt.
type Manager struct {
	account  domain.Account
	auth     ports.Authenticator
	codes    ports.CodeGenerator
	notifier ports.Notifier
	policy   domain.RetryPolicy

	// loginMtx serializes login attempts so that a re-login triggered by
	// session expiry cannot race a login triggered by the bootstrap sequence.
	loginMtx sync.Mutex

	mtx     sync.Mutex
	cookies ports.Cookies
	status  domain.SessionStatus
}

func newManager(
	account domain.Account,
	auth ports.Authenticator,
	codes ports.CodeGenerator,
	notifier ports.Notifier,
	policy domain.RetryPolicy,
) *Manager {
	return &Manager{
		account:  account,
		auth:     auth,
		codes:    codes,
		notifier: notifier,
		policy:   policy,
		status:   domain.StatusUnauthenticated,
	}
}

func (m *Manager) Account() domain.Account {
	return m.account
}

// Cookies returns a snapshot of the current session cookies. It is the only
// way dependents are allowed to read them.
func (m *Manager) Cookies() ports.Cookies {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.cookies
}

func (m *Manager) Status() domain.SessionStatus {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.status
}

// Login performs a single login attempt, generating a fresh one-time code
// from the account's shared secret. On success the session cookies are
// replaced wholesale and the status moves to Authenticated.
func (m *Manager) Login(ctx context.Context) error {
	m.loginMtx.Lock()
	defer m.loginMtx.Unlock()

	code, err := m.codes.TotpCode(m.account.SharedSecret)
	if err != nil {
		stats.IncLogin(m.account.Name, false)
		return &domain.AuthError{
			Account: m.account.Name,
			Err:     fmt.Errorf("generating one-time code: %w", err),
		}
	}

	cookies, err := m.auth.Login(ctx, ports.Credentials{
		AccountName: m.account.Name,
		Password:    m.account.Password,
		TotpCode:    code,
	})
	if err != nil {
		stats.IncLogin(m.account.Name, false)
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &domain.AuthError{Account: m.account.Name, Err: err}
	}

	m.mtx.Lock()
	m.cookies = cookies
	m.status = domain.StatusAuthenticated
	m.mtx.Unlock()

	stats.IncLogin(m.account.Name, true)
	return nil
}

// loginUntilSuccess retries Login unboundedly at LoginRetryDelay cadence,
// reporting every failure to the observer. It returns only on success or
// context cancellation: a permanently-unauthenticated account silently stops
// trading, so expiry recovery must never be abandoned.
func (m *Manager) loginUntilSuccess(ctx context.Context) error {
	for {
		err := m.Login(ctx)
		if err == nil {
			m.notifier.Notify(
				fmt.Sprintf("Steam login success for %s", m.account.Name),
				"steamLoginSuccess",
			)
			return nil
		}

		log.WithError(err).Warnf("login failed for account %s", m.account.Name)
		m.notifier.Notify(
			fmt.Sprintf("Steam login failed for %s: %s", m.account.Name, err),
			"steamLoginFailed",
		)

		// wait out a possible authenticator lockout before trying again
		if err := wait(ctx, m.policy.LoginRetryDelay); err != nil {
			return err
		}
	}
}

// handleExpired drives the recovery of a session invalidated by the platform.
func (m *Manager) handleExpired(ctx context.Context) {
	m.mtx.Lock()
	if m.status == domain.StatusReauthenticating {
		m.mtx.Unlock()
		return
	}
	m.status = domain.StatusReauthenticating
	m.mtx.Unlock()

	m.notifier.Notify(
		fmt.Sprintf("Steam session expired for %s", m.account.Name),
		"steamSessionExpired",
	)

	if err := m.loginUntilSuccess(ctx); err != nil {
		log.WithError(err).Debugf(
			"session recovery interrupted for account %s", m.account.Name,
		)
	}
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
