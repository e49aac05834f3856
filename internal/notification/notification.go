// Package notification fans trade events out to configured providers.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Type classifies a notification.
type Type string

const (
	NotifyTradeOpen  Type = "trade_open"
	NotifyTradeClose Type = "trade_close"
	NotifyMilestone  Type = "milestone"
	NotifyCooldown   Type = "cooldown"
	NotifyError      Type = "error"
)

// Notification is one outbound message.
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Symbol    string
	Price     float64
	PnL       float64
	Timestamp time.Time
}

// Notifier is a delivery provider.
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans one notification out to all enabled providers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// AddNotifier registers a provider.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers to every enabled provider, returning the last error.
func (m *Manager) Send(notification *Notification) error {
	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendTradeOpen announces a new position.
func (m *Manager) SendTradeOpen(symbol, orderType, scenario string, entry, stopLoss, target float64) error {
	return m.Send(&Notification{
		Type:      NotifyTradeOpen,
		Title:     fmt.Sprintf("Trade Opened: %s", symbol),
		Message:   fmt.Sprintf("%s via %s\nEntry: %.2f\nSL: %.2f | Target: %.2f", orderType, scenario, entry, stopLoss, target),
		Symbol:    symbol,
		Price:     entry,
		Timestamp: time.Now(),
	})
}

// SendTradeClose announces an exit with its reason and P&L.
func (m *Manager) SendTradeClose(symbol, reason string, entry, exit, profit float64) error {
	return m.Send(&Notification{
		Type:      NotifyTradeClose,
		Title:     fmt.Sprintf("Trade Closed: %s", symbol),
		Message:   fmt.Sprintf("Entry: %.2f -> Exit: %.2f\nP&L: %.2f\nReason: %s", entry, exit, profit, reason),
		Symbol:    symbol,
		Price:     exit,
		PnL:       profit,
		Timestamp: time.Now(),
	})
}

// SendMilestone announces a milestone hit and the new stop level.
func (m *Manager) SendMilestone(symbol string, milestone int, price, newStop float64) error {
	return m.Send(&Notification{
		Type:      NotifyMilestone,
		Title:     fmt.Sprintf("Milestone %d: %s", milestone, symbol),
		Message:   fmt.Sprintf("Price %.2f reached milestone %d\nStop loss trailed to %.2f", price, milestone, newStop),
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now(),
	})
}

// TelegramConfig holds Telegram credentials.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// TelegramNotifier delivers via the Telegram bot API.
type TelegramNotifier struct {
	cfg    TelegramConfig
	client *http.Client
}

// NewTelegramNotifier creates a Telegram provider.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the provider name.
func (t *TelegramNotifier) Name() string { return "telegram" }

// IsEnabled reports whether the provider should receive messages.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.cfg.Enabled && t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

// Send posts the notification text to the configured chat.
func (t *TelegramNotifier) Send(notification *Notification) error {
	text := notification.Title
	if notification.Message != "" {
		text += "\n" + notification.Message
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.cfg.BotToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
