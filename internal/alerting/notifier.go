package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Kind labels which threshold a notification crossed.
type Kind string

const (
	KindSellTarget Kind = "sell_target"
	KindBuyIn      Kind = "buy_in"
)

// Notification captures a threshold crossing for one tracked pair.
type Notification struct {
	ID           uuid.UUID
	Pair         string
	DisplayName  string
	Kind         Kind
	Price        decimal.Decimal
	CurrentValue decimal.Decimal
	Threshold    decimal.Decimal
	At           time.Time
}

// Notifier delivers threshold-crossing notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the notification text via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("id", note.ID.String()).
		Str("pair", note.Pair).
		Str("kind", string(note.Kind)).
		Msg("alert sent")
	return nil
}

func renderMessage(note Notification) string {
	name := note.DisplayName
	if name == "" {
		name = note.Pair
	}

	builder := strings.Builder{}
	builder.WriteString("[pairwatch Alert]\n")
	builder.WriteString(fmt.Sprintf("Pair: %s\n", name))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", note.At.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Price: %s\n", note.Price.String()))
	switch note.Kind {
	case KindSellTarget:
		builder.WriteString(fmt.Sprintf("Holdings value %s reached sell target %s\n", note.CurrentValue.StringFixed(2), note.Threshold.StringFixed(2)))
	case KindBuyIn:
		builder.WriteString(fmt.Sprintf("Holdings value %s fell to buy-in threshold %s\n", note.CurrentValue.StringFixed(2), note.Threshold.StringFixed(2)))
	default:
		builder.WriteString(fmt.Sprintf("Threshold %s crossed at value %s\n", note.Threshold.StringFixed(2), note.CurrentValue.StringFixed(2)))
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
