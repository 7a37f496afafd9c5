package notify

// telegram.go: outbound notification channel.
//
// Fire-and-forget from the engine's point of view: Post enqueues and
// returns; a background worker drains the queue respecting Telegram's
// per-chat rate limit. A full queue drops the message with a warning;
// notifications must never block a state transition.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Min interval between two messages to the same chat (~30/min limit).
const telegramSendInterval = 2 * time.Second

// Telegram implements ports.Notifier over a bot chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	queue     chan string
	queueDone chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu       sync.Mutex
	lastSend time.Time
}

// NewTelegram creates the notifier and verifies the bot token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: create bot: %w", err)
	}
	bot.Debug = false

	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: verify bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Telegram{
		bot:       bot,
		chatID:    chatID,
		queue:     make(chan string, 100),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	n.wg.Add(1)
	go n.sender()

	slog.Info("telegram notifier initialized", "chat_id", chatID)
	return n, nil
}

// Post implements ports.Notifier (non-blocking).
func (n *Telegram) Post(ctx context.Context, msg string) error {
	select {
	case <-n.ctx.Done():
		return fmt.Errorf("notify.Post: notifier stopped")
	case <-ctx.Done():
		return ctx.Err()
	case n.queue <- msg:
		return nil
	default:
		slog.Warn("telegram queue full, dropping message", "preview", truncate(msg, 50))
		return fmt.Errorf("notify.Post: queue full")
	}
}

// Stop drains the queue and shuts the sender down.
func (n *Telegram) Stop() {
	n.cancel()
	<-n.queueDone
	n.wg.Wait()
}

// sender runs in background and sends queued messages with proper intervals.
func (n *Telegram) sender() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case msg := <-n.queue:
					n.send(msg)
				default:
					close(n.queueDone)
					return
				}
			}
		case msg := <-n.queue:
			n.send(msg)
		}
	}
}

func (n *Telegram) send(msg string) {
	n.mu.Lock()
	elapsed := time.Since(n.lastSend)
	if elapsed < telegramSendInterval {
		wait := telegramSendInterval - elapsed
		n.mu.Unlock()
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(wait):
		}
		n.mu.Lock()
	}
	n.lastSend = time.Now()
	n.mu.Unlock()

	tgMsg := tgbotapi.NewMessage(n.chatID, msg)
	if _, err := n.bot.Send(tgMsg); err != nil {
		slog.Error("telegram send failed", "err", err, "preview", truncate(msg, 50))
		return
	}
	slog.Debug("telegram message sent", "queue_len", len(n.queue))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
