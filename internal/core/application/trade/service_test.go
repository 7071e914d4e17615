package trade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tradebot-network/tradebot-daemon/internal/core/application/session"
	"github.com/tradebot-network/tradebot-daemon/internal/core/application/trade"
	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
)

const (
	testTradeURL = "https://steamcommunity.com/tradeoffer/new/?partner=1&token=t"
	testUserID   = int64(7)
)

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{
		MaxSendAttempts:   5,
		SendRetryDelay:    time.Millisecond,
		ConfirmRetryDelay: time.Millisecond,
		LoginRetryDelay:   time.Millisecond,
		ReauthCooldown:    time.Millisecond,
		SettleDelay:       time.Millisecond,
		BootstrapDelay:    time.Millisecond,
	}
}

func testItem() domain.TradeItem {
	return domain.TradeItem{AssetID: "123", MarketName: "AK-47 | Redline"}
}

type pipeline struct {
	trades   *trade.Service
	auth     *mockAuthenticator
	notifier *mockNotifier
}

func newPipeline(
	t *testing.T,
	offers *mockOfferFactory,
	confirmer *mockConfirmer,
	policy domain.RetryPolicy,
) pipeline {
	auth := &mockAuthenticator{}
	codes := &mockCodeGenerator{}
	notifier := &mockNotifier{}

	codes.On("TotpCode", mock.Anything).Return("AAAAA", nil).Maybe()

	sessions, err := session.NewService(session.Opts{
		Accounts: []domain.Account{{
			Name:           "trader01",
			Password:       "hunter2",
			SharedSecret:   "c2hhcmVkc2VjcmV0MDE=",
			IdentitySecret: "aWRlbnRpdHlzZWNyZXQw",
			UserID:         testUserID,
		}},
		Authenticator: auth,
		CodeGenerator: codes,
		Notifier:      notifier,
		Policy:        policy,
	})
	require.NoError(t, err)

	trades, err := trade.NewService(sessions, offers, confirmer, notifier, policy)
	require.NoError(t, err)

	return pipeline{trades: trades, auth: auth, notifier: notifier}
}

func TestSendOfferUnknownAccount(t *testing.T) {
	p := newPipeline(t, &mockOfferFactory{}, &mockConfirmer{}, testPolicy())

	_, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, 999,
	)
	require.ErrorIs(t, err, domain.ErrUnknownAccount)
}

func TestSendOfferConfirmed(t *testing.T) {
	offer := &mockOffer{}
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(nil).Once()

	p := newPipeline(t, offers, confirmer, testPolicy())

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmed, outcome.Code)
	require.Equal(t, "42", outcome.OfferID)

	// the offer carries exactly the one asset with the platform identifiers
	require.Len(t, offer.items, 1)
	require.Equal(t, "123", offer.items[0].AssetID)
	require.Equal(t, trade.AppID, offer.items[0].AppID)
	require.Equal(t, trade.InventoryContextID, offer.items[0].ContextID)

	offer.AssertExpectations(t)
	confirmer.AssertExpectations(t)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	offer := &mockOffer{}
	offer.On("Send", mock.Anything, mock.Anything).
		Return(nil, errors.New("platform hiccup")).Twice()
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(nil).Once()

	p := newPipeline(t, offers, confirmer, testPolicy())

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmed, outcome.Code)
	offer.AssertNumberOfCalls(t, "Send", 3)
}

func TestSendAbandonedAtExactlyMaxFailures(t *testing.T) {
	offer := &mockOffer{}
	// fails 5 times, then would succeed: with max=5 the 6th call must never
	// happen and the offer is abandoned
	offer.On("Send", mock.Anything, mock.Anything).
		Return(nil, errors.New("platform hiccup")).Times(5)
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Maybe()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	confirmer := &mockConfirmer{}

	p := newPipeline(t, offers, confirmer, testPolicy())

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeSendFailed, outcome.Code)
	require.Contains(t, outcome.Reason, domain.ErrSendAbandoned.Error())

	offer.AssertNumberOfCalls(t, "Send", 5)
	confirmer.AssertNotCalled(
		t, "Confirm", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)
	require.Equal(t, 1, p.notifier.count("offerSendFailed"))
}

func TestConfirmRetriesAreSpacedByDelay(t *testing.T) {
	offer := &mockOffer{}
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	rejected := &domain.ConfirmRejectedError{
		OfferID: "42", Err: errors.New("refused"),
	}
	attempts := make([]time.Time, 0)
	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Run(func(_ mock.Arguments) { attempts = append(attempts, time.Now()) }).
		Return(rejected).Twice()
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Run(func(_ mock.Arguments) { attempts = append(attempts, time.Now()) }).
		Return(nil).Once()

	policy := testPolicy()
	policy.ConfirmRetryDelay = 30 * time.Millisecond

	p := newPipeline(t, offers, confirmer, policy)

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmed, outcome.Code)

	require.Len(t, attempts, 3)
	for i := 1; i < len(attempts); i++ {
		require.GreaterOrEqual(
			t, attempts[i].Sub(attempts[i-1]), 25*time.Millisecond,
		)
	}
}

func TestGlitchedOfferStillRetriesConfirmation(t *testing.T) {
	offer := &mockOffer{glitched: true}
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	rejected := &domain.ConfirmRejectedError{
		OfferID: "42", Err: errors.New("refused"),
	}
	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(rejected).Twice()
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(nil).Once()

	p := newPipeline(t, offers, confirmer, testPolicy())

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	// the glitched diagnostic does not change the retry decision
	require.Equal(t, domain.OutcomeConfirmed, outcome.Code)
	confirmer.AssertNumberOfCalls(t, "Confirm", 3)
}

func TestConfirmSessionFaultForcesOneRelogin(t *testing.T) {
	offer := &mockOffer{}
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(errors.New("connection reset")).Once()
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(nil).Once()

	p := newPipeline(t, offers, confirmer, testPolicy())
	p.auth.On("Login", mock.Anything, mock.Anything).
		Return(ports.Cookies{AccountName: "trader01", Values: []string{"sessionid=new"}}, nil).
		Once()

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmed, outcome.Code)

	// the session fault triggered exactly one forced login
	p.auth.AssertNumberOfCalls(t, "Login", 1)
	confirmer.AssertNumberOfCalls(t, "Confirm", 2)
}

func TestOfferCreationFailureReportsSendFailed(t *testing.T) {
	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).
		Return(nil, errors.New("trade url misses partner or token")).Once()

	p := newPipeline(t, offers, &mockConfirmer{}, testPolicy())

	outcome, err := p.trades.SendOffer(
		context.Background(), testItem(), testTradeURL, testUserID,
	)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeSendFailed, outcome.Code)
	require.NotEmpty(t, outcome.Reason)
}

func TestConfirmCancelledByCaller(t *testing.T) {
	offer := &mockOffer{}
	offer.On("Send", mock.Anything, mock.Anything).Return("42", nil).Once()

	offers := &mockOfferFactory{}
	offers.On("NewOffer", testTradeURL).Return(offer, nil).Once()

	rejected := &domain.ConfirmRejectedError{
		OfferID: "42", Err: errors.New("refused"),
	}
	confirmer := &mockConfirmer{}
	confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything, "42").
		Return(rejected)

	policy := testPolicy()
	policy.ConfirmRetryDelay = time.Hour

	p := newPipeline(t, offers, confirmer, policy)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcome, err := p.trades.SendOffer(ctx, testItem(), testTradeURL, testUserID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeConfirmFailed, outcome.Code)
	require.Equal(t, "42", outcome.OfferID)
}
