// Package notify forwards accepted deals to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"

	"btrader/internal/arbitrage"
	"btrader/internal/config"
	"btrader/internal/infra/metrics"
	"btrader/internal/infra/network"
)

const queueSize = 64

// ErrQueueFull is returned by Record when the sender is too far behind.
var ErrQueueFull = errors.New("telegram queue full")

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram queues one message per accepted deal and sends them through the
// Bot API from a background loop, paced by a token bucket.
type Telegram struct {
	http     *http.Client
	endpoint string
	chatID   int64
	limiter  *network.TokenBucket
	queue    chan string
	logger   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New validates the telegram section and starts the sender.
func New(cfg config.Config, logger zerolog.Logger) (*Telegram, error) {
	tg := cfg.Telegram
	if tg.Token == "" {
		return nil, errors.New("telegram enabled without BTRADER_TELEGRAM_TOKEN")
	}
	if tg.ChatID == 0 {
		return nil, errors.New("telegram enabled without a chat id")
	}
	client := network.NewHTTPClient(time.Duration(tg.TimeoutSeconds) * time.Second)
	t := newTelegram(client, tg.APIURL, tg.Token, tg.ChatID, tg.MessagesPerSecond, queueSize, logger)
	logger.Info().Int64("chat_id", tg.ChatID).Msg("telegram notifications enabled")
	t.start()
	return t, nil
}

func newTelegram(client *http.Client, apiURL, token string, chatID int64, rate float64, size int, logger zerolog.Logger) *Telegram {
	if rate <= 0 {
		rate = 1
	}
	return &Telegram{
		http:     client,
		endpoint: strings.TrimRight(apiURL, "/") + "/bot" + token + "/sendMessage",
		chatID:   chatID,
		limiter:  network.NewTokenBucket(1, rate),
		queue:    make(chan string, size),
		logger:   logger.With().Str("component", "telegram").Logger(),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Record enqueues the deal message without blocking the scan loop.
func (t *Telegram) Record(_ context.Context, d arbitrage.Deal) error {
	select {
	case t.queue <- FormatDeal(d):
		return nil
	default:
		return ErrQueueFull
	}
}

func (t *Telegram) start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.loop(ctx)
	}()
}

func (t *Telegram) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
			if err := t.Send(ctx, msg); err != nil {
				metrics.SinkErrorsTotal.WithLabelValues(t.Name()).Inc()
				t.logger.Warn().Err(err).Msg("telegram send failed")
			}
		}
	}
}

// Send posts one message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := sonnet.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.http.Do(req)
	if err != nil {
		// the url carries the bot token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var out apiResponse
	if err := sonnet.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("sendMessage: decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("sendMessage: status %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}

// Close stops the sender. Queued messages are dropped.
func (t *Telegram) Close() error {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		t.wg.Wait()
	})
	return nil
}

// FormatDeal renders a deal as "[+0.123%] Deal tri: ETHBTC BUY 1 -> 0.05, ...".
func FormatDeal(d arbitrage.Deal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%+.3f%%] Deal %s:", d.Profit*100, d.Relationship)
	for i, a := range d.Actions {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, " %s %s %.8g -> %.8g", a.Symbol, a.Side, a.Input, a.Quantity)
	}
	return b.String()
}
