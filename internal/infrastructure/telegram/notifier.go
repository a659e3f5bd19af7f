package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends filing alerts to per-user Telegram chats via the bot API.
type Notifier struct {
	botToken string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the bot token. The recipient chat id travels with
// each call, since every user receives their own messages.
func NewNotifier(botToken string) *Notifier {
	return &Notifier{
		botToken: botToken,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts a plain-text message to the recipient's chat. Any transport
// or API failure maps to domain.ErrDeliveryFailed so the caller leaves the
// filing unseen for the next cycle.
func (n *Notifier) Notify(ctx context.Context, recipientID, text string) error {
	if n.botToken == "" || n.client == nil {
		return fmt.Errorf("%w: telegram notifier misconfigured", domain.ErrDeliveryFailed)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", recipientID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: new request: %v", domain.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: telegram error: %s", domain.ErrDeliveryFailed, resp.Status)
	}

	return nil
}
