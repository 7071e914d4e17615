package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tradebot-network/tradebot-daemon/internal/core/domain"
	"github.com/tradebot-network/tradebot-daemon/internal/core/ports"
)

// offer is an outgoing trade offer bound to a destination trade URL. The
// partner and access token are extracted from the URL at construction, the
// network call happens only in Send.
type offer struct {
	client   *Client
	tradeURL string
	partner  string
	token    string
	id       string
	give     []ports.Item
	receive  []ports.Item
}

// NewOffer implements ports.OfferFactory.
func (c *Client) NewOffer(tradeURL string) (ports.OfferHandle, error) {
	parsed, err := url.Parse(tradeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid trade url: %w", err)
	}
	partner := parsed.Query().Get("partner")
	token := parsed.Query().Get("token")
	if partner == "" || token == "" {
		return nil, fmt.Errorf("trade url misses partner or token")
	}

	return &offer{
		client:   c,
		tradeURL: tradeURL,
		partner:  partner,
		token:    token,
	}, nil
}

func (o *offer) AddItems(items []ports.Item) {
	o.give = append(o.give, items...)
}

func (o *offer) ID() string {
	return o.id
}

// IsGlitched reports an offer empty of items on both sides.
func (o *offer) IsGlitched() bool {
	return len(o.give) <= 0 && len(o.receive) <= 0
}

type wireAsset struct {
	AssetID   string `json:"assetid"`
	AppID     uint32 `json:"appid"`
	ContextID string `json:"contextid"`
	Amount    int    `json:"amount"`
}

func toWireAssets(items []ports.Item) []wireAsset {
	assets := make([]wireAsset, 0, len(items))
	for _, item := range items {
		assets = append(assets, wireAsset{
			AssetID:   item.AssetID,
			AppID:     item.AppID,
			ContextID: item.ContextID,
			Amount:    1,
		})
	}
	return assets
}

// Send implements ports.OfferHandle.
func (o *offer) Send(
	ctx context.Context, cookies ports.Cookies,
) (string, error) {
	payload := map[string]interface{}{
		"newversion": true,
		"version":    2,
		"me":         map[string]interface{}{"assets": toWireAssets(o.give)},
		"them":       map[string]interface{}{"assets": toWireAssets(o.receive)},
	}
	rawOffer, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("partner", o.partner)
	form.Set("trade_offer_access_token", o.token)
	form.Set("json_tradeoffer", string(rawOffer))
	form.Set("tradeoffermessage", "")

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s/tradeoffer/new/send", o.client.baseURL),
		bytes.NewBufferString(form.Encode()),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", o.tradeURL)

	status, body, err := o.client.do(ctx, req, cookies)
	if err != nil {
		return "", err
	}

	resp := struct {
		TradeOfferID string `json:"tradeofferid"`
		StrError     string `json:"strError"`
	}{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unexpected send response with status %d", status)
	}
	if status != http.StatusOK || resp.TradeOfferID == "" {
		message := resp.StrError
		if message == "" {
			message = fmt.Sprintf("send rejected with status %d", status)
		}
		return "", fmt.Errorf(message)
	}

	o.id = resp.TradeOfferID
	return o.id, nil
}

// Confirm implements ports.Confirmer. An explicit refusal from the platform
// is reported as *domain.ConfirmRejectedError, everything else as a plain
// error meaning the session itself is broken.
func (c *Client) Confirm(
	ctx context.Context, cookies ports.Cookies, identitySecret, offerID string,
) error {
	now := time.Now()
	key, err := ConfirmationKey(identitySecret, now, "allow")
	if err != nil {
		return fmt.Errorf("deriving confirmation key: %w", err)
	}

	query := url.Values{}
	query.Set("op", "allow")
	query.Set("cid", offerID)
	query.Set("ck", key)
	query.Set("t", fmt.Sprintf("%d", now.Unix()))

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s/mobileconf/ajaxop?%s", c.baseURL, query.Encode()),
		nil,
	)
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, req, cookies)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("confirmation endpoint answered with status %d", status)
	}

	resp := struct {
		Success bool `json:"success"`
	}{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unexpected confirmation response: %w", err)
	}
	if !resp.Success {
		return &domain.ConfirmRejectedError{
			OfferID: offerID,
			Err:     errors.New("platform refused the confirmation"),
		}
	}
	return nil
}

// IncomingOffers implements ports.OfferPoller.
func (c *Client) IncomingOffers(
	ctx context.Context, cookies ports.Cookies,
) ([]ports.IncomingOffer, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		fmt.Sprintf("%s/tradeoffers/received", c.baseURL),
		nil,
	)
	if err != nil {
		return nil, err
	}

	status, body, err := c.do(ctx, req, cookies)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("offer listing answered with status %d", status)
	}

	resp := struct {
		Offers []struct {
			TradeOfferID   string `json:"tradeofferid"`
			ItemsToGive    int    `json:"items_to_give"`
			ItemsToReceive int    `json:"items_to_receive"`
			IsOurOffer     bool   `json:"is_our_offer"`
		} `json:"offers"`
	}{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unexpected offer listing response: %w", err)
	}

	offers := make([]ports.IncomingOffer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		offers = append(offers, ports.IncomingOffer{
			OfferID:        o.TradeOfferID,
			ItemsToGive:    o.ItemsToGive,
			ItemsToReceive: o.ItemsToReceive,
			IsOurOffer:     o.IsOurOffer,
		})
	}
	return offers, nil
}

// AcceptOffer implements ports.OfferPoller.
func (c *Client) AcceptOffer(
	ctx context.Context, cookies ports.Cookies, offerID string,
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		fmt.Sprintf("%s/tradeoffer/%s/accept", c.baseURL, offerID),
		nil,
	)
	if err != nil {
		return err
	}

	status, _, err := c.do(ctx, req, cookies)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("offer accept answered with status %d", status)
	}
	return nil
}
