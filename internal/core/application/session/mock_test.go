package session_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
)

// Authenticator
type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Login(
	ctx context.Context, creds ports.Credentials,
) (ports.Cookies, error) {
	args := m.Called(ctx, creds)

	var res ports.Cookies
	if a := args.Get(0); a != nil {
		res = a.(ports.Cookies)
	}
	return res, args.Error(1)
}

// CodeGenerator
type mockCodeGenerator struct {
	mock.Mock
}

func (m *mockCodeGenerator) TotpCode(sharedSecret string) (string, error) {
	args := m.Called(sharedSecret)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// OfferPoller
type mockOfferPoller struct {
	mock.Mock
}

func (m *mockOfferPoller) IncomingOffers(
	ctx context.Context, cookies ports.Cookies,
) ([]ports.IncomingOffer, error) {
	args := m.Called(ctx, cookies)

	var res []ports.IncomingOffer
	if a := args.Get(0); a != nil {
		res = a.([]ports.IncomingOffer)
	}
	return res, args.Error(1)
}

func (m *mockOfferPoller) AcceptOffer(
	ctx context.Context, cookies ports.Cookies, offerID string,
) error {
	args := m.Called(ctx, cookies, offerID)
	return args.Error(0)
}

// SessionWatcher backed by a channel the test pushes expiry events into.
type mockWatcher struct {
	events chan ports.SessionEvent
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{events: make(chan ports.SessionEvent, 10)}
}

func (m *mockWatcher) SessionExpiry() <-chan ports.SessionEvent {
	return m.events
}

// Notifier recording every event it was handed, thread safe.
type mockNotifier struct {
	mtx    sync.Mutex
	events []string
}

func (m *mockNotifier) Notify(message, eventKind string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.events = append(m.events, eventKind)
}

func (m *mockNotifier) kinds() []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return append([]string{}, m.events...)
}

func (m *mockNotifier) count(kind string) int {
	total := 0
	for _, k := range m.kinds() {
		if k == kind {
			total++
		}
	}
	return total
}
