package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
	"github.com/tradebot-network/tradebot-daemon/pkg/circuitbreaker"
)

const (
	defaultBaseURL = "https://steamcommunity.com"

	eventQueueMaxSize = 100
)

// Opts defines the parameters needed for creating a steam client with
// NewClient.
type Opts struct {
	BaseURL string
	// Accounts is used to build one http client per account honoring its
	// optional proxy.
	Accounts []domain.Account
	// RequestsPerSecond caps the request rate against the platform across all
	// accounts.
	RequestsPerSecond float64
}

// Client is the HTTP transport against the trading platform. It implements
// the Authenticator, OfferFactory, Confirmer, OfferPoller and SessionWatcher
// capabilities consumed by the application layer.
type Client struct {
	baseURL       string
	defaultClient *http.Client
	clients       map[string]*http.Client
	cb            *gobreaker.CircuitBreaker
	limiter       *rate.Limiter
	events        chan ports.SessionEvent
	totp          *CodeGenerator
}

func NewClient(opts Opts) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	clients := make(map[string]*http.Client)
	for _, account := range opts.Accounts {
		transport := &http.Transport{}
		if account.ProxyURL != "" {
			proxyURL, err := url.Parse(account.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf(
					"invalid proxy url for account %s: %w", account.Name, err,
				)
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
		clients[account.Name] = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		}
	}

	return &Client{
		baseURL:       baseURL,
		defaultClient: &http.Client{Timeout: 30 * time.Second},
		clients:       clients,
		cb:            circuitbreaker.NewCircuitBreaker("steam"),
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		events:        make(chan ports.SessionEvent, eventQueueMaxSize),
		totp:          NewCodeGenerator(),
	}, nil
}

// Totp returns the time-based code generator bound to the client.
func (c *Client) Totp() *CodeGenerator {
	return c.totp
}

// SessionExpiry returns the channel where the client signals sessions
// invalidated by the platform. Subscribed once by the session pool.
func (c *Client) SessionExpiry() <-chan ports.SessionEvent {
	return c.events
}

// Login implements ports.Authenticator.
func (c *Client) Login(
	ctx context.Context, creds ports.Credentials,
) (ports.Cookies, error) {
	form := url.Values{}
	form.Set("username", creds.AccountName)
	form.Set("password", creds.Password)
	form.Set("twofactorcode", creds.TotpCode)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s/login/dologin", c.baseURL),
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return ports.Cookies{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := c.limiter.Wait(ctx); err != nil {
		return ports.Cookies{}, err
	}
	ires, err := c.cb.Execute(func() (interface{}, error) {
		return c.httpClient(creds.AccountName).Do(req)
	})
	if err != nil {
		return ports.Cookies{}, &domain.AuthError{
			Account: creds.AccountName, Err: err,
		}
	}
	res := ires.(*http.Response)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return ports.Cookies{}, &domain.AuthError{
			Account: creds.AccountName, Err: err,
		}
	}

	payload := struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ports.Cookies{}, &domain.AuthError{
			Account: creds.AccountName,
			Err:     fmt.Errorf("unexpected login response: %w", err),
		}
	}
	if !payload.Success {
		message := payload.Message
		if message == "" {
			message = "credentials or guard code rejected"
		}
		return ports.Cookies{}, &domain.AuthError{
			Account: creds.AccountName, Err: fmt.Errorf(message),
		}
	}

	values := make([]string, 0, len(res.Cookies()))
	for _, cookie := range res.Cookies() {
		values = append(values, cookie.String())
	}
	return ports.Cookies{AccountName: creds.AccountName, Values: values}, nil
}

func (c *Client) httpClient(accountName string) *http.Client {
	if client, ok := c.clients[accountName]; ok {
		return client
	}
	return c.defaultClient
}

// do performs an authenticated request, signalling session expiry if the
// platform rejects the cookies.
func (c *Client) do(
	ctx context.Context, req *http.Request, cookies ports.Cookies,
) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	for _, value := range cookies.Values {
		req.Header.Add("Cookie", value)
	}

	ires, err := c.cb.Execute(func() (interface{}, error) {
		return c.httpClient(cookies.AccountName).Do(req)
	})
	if err != nil {
		return 0, nil, err
	}
	res := ires.(*http.Response)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, err
	}

	if res.StatusCode == http.StatusUnauthorized ||
		res.StatusCode == http.StatusForbidden {
		c.signalExpiry(cookies.AccountName)
	}
	return res.StatusCode, body, nil
}

// signalExpiry never blocks: if the queue is full the pool is already
// recovering the account.
func (c *Client) signalExpiry(accountName string) {
	select {
	case c.events <- ports.SessionEvent{AccountName: accountName}:
	default:
	}
}
