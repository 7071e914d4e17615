package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// TelegramNotifier delivers observer events to a telegram chat. Delivery is
// fire-and-forget: it never blocks the trading pipeline, never retries, and
// failures are only debug-logged. With an empty token or chat id every
// notification is a no-op.
type TelegramNotifier struct {
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify implements ports.Notifier.
func (n *TelegramNotifier) Notify(message, eventKind string) {
	if n.botToken == "" || n.chatID == "" || message == "" {
		return
	}
	go n.send(fmt.Sprintf("[%s] %s", eventKind, message))
}

func (n *TelegramNotifier) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	body := map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		log.WithError(err).Debug("failed to encode telegram notification")
		return
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(raw),
	)
	if err != nil {
		log.WithError(err).Debug("failed to build telegram notification")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("failed to deliver telegram notification")
		return
	}
	resp.Body.Close()
}
