package trade_test

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

// OfferHandle
type mockOffer struct {
	mock.Mock

	mtx      sync.Mutex
	items    []ports.Item
	id       string
	glitched bool
}

func (m *mockOffer) AddItems(items []ports.Item) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.items = append(m.items, items...)
}

func (m *mockOffer) Send(
	ctx context.Context, cookies ports.Cookies,
) (string, error) {
	args := m.Called(ctx, cookies)

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	if res != "" {
		m.mtx.Lock()
		m.id = res
		m.mtx.Unlock()
	}
	return res, args.Error(1)
}

func (m *mockOffer) ID() string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.id
}

func (m *mockOffer) IsGlitched() bool {
	return m.glitched
}

// OfferFactory handing out a prebuilt offer handle.
type mockOfferFactory struct {
	mock.Mock
}

func (m *mockOfferFactory) NewOffer(tradeURL string) (ports.OfferHandle, error) {
	args := m.Called(tradeURL)

	var res ports.OfferHandle
	if a := args.Get(0); a != nil {
		res = a.(ports.OfferHandle)
	}
	return res, args.Error(1)
}

// Confirmer
type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) Confirm(
	ctx context.Context, cookies ports.Cookies, identitySecret, offerID string,
) error {
	args := m.Called(ctx, cookies, identitySecret, offerID)
	return args.Error(0)
}

// Notifier recording every event kind it was handed, thread safe.
type mockNotifier struct {
	mtx    sync.Mutex
	events []string
}

func (m *mockNotifier) Notify(message, eventKind string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.events = append(m.events, eventKind)
}

func (m *mockNotifier) count(kind string) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	total := 0
	for _, k := range m.events {
		if k == kind {
			total++
		}
	}
	return total
}
