package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"options-scalper-bot/internal/indicator"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
	readTimeout        = 60 * time.Second
)

// tickMessage is the wire shape of one tick from the feed.
type tickMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// TickFeed streams index ticks from the broker websocket into a channel.
// It reconnects with backoff until stopped; a slow consumer drops ticks
// rather than stalling the read loop.
type TickFeed struct {
	url      string
	symbol   string
	creds    *Credentials
	logger   zerolog.Logger
	ticks    chan indicator.Tick
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTickFeed creates a feed for one index symbol.
func NewTickFeed(url, symbol string, creds *Credentials, logger zerolog.Logger) *TickFeed {
	return &TickFeed{
		url:      url,
		symbol:   symbol,
		creds:    creds,
		logger:   logger.With().Str("component", "TickFeed").Logger(),
		ticks:    make(chan indicator.Tick, 256),
		stopChan: make(chan struct{}),
	}
}

// Ticks returns the tick channel. Closed when the feed stops.
func (f *TickFeed) Ticks() <-chan indicator.Tick {
	return f.ticks
}

// Start launches the read loop.
func (f *TickFeed) Start() {
	f.wg.Add(1)
	go f.run()
}

// Stop shuts the feed down and closes the tick channel.
func (f *TickFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopChan)
	})
	f.wg.Wait()
}

func (f *TickFeed) run() {
	defer f.wg.Done()
	defer close(f.ticks)

	var delay time.Duration
	for {
		select {
		case <-f.stopChan:
			return
		default:
		}

		connected, err := f.consume()
		delay = nextReconnectDelay(delay, connected)
		if err != nil {
			f.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Tick stream disconnected")
		}

		select {
		case <-f.stopChan:
			return
		case <-time.After(delay):
		}
	}
}

// nextReconnectDelay backs the retry delay off exponentially across failed
// dial attempts and resets it once a session was established, so brief
// disconnects spread over the day do not accumulate toward the cap.
func nextReconnectDelay(current time.Duration, connected bool) time.Duration {
	if connected {
		return reconnectBaseDelay
	}
	next := current * 2
	if next < reconnectBaseDelay {
		next = reconnectBaseDelay
	}
	if next > reconnectMaxDelay {
		next = reconnectMaxDelay
	}
	return next
}

// consume runs one websocket session. The connected result reports whether a
// session was established at all, regardless of how it ended.
func (f *TickFeed) consume() (bool, error) {
	header := map[string][]string{}
	if f.creds != nil && f.creds.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + f.creds.AccessToken}
	}

	conn, _, err := websocket.DefaultDialer.Dial(f.url, header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	sub := map[string]interface{}{"action": "subscribe", "symbols": []string{f.symbol}}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info().Str("symbol", f.symbol).Msg("Tick stream connected")

	for {
		select {
		case <-f.stopChan:
			return true, nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return true, err
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}

		var msg tickMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			f.logger.Debug().Err(err).Msg("Skipping malformed tick message")
			continue
		}
		if msg.Price <= 0 {
			continue
		}

		tick := indicator.Tick{
			Symbol:    msg.Symbol,
			Price:     msg.Price,
			Timestamp: time.UnixMilli(msg.Timestamp),
		}

		select {
		case f.ticks <- tick:
		default:
			// Consumer is behind; newer ticks matter more than old ones.
			f.logger.Debug().Msg("Tick channel full, dropping tick")
		}
	}
}
