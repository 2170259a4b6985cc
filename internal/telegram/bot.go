package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/YumaSeno/AIDeveloper/internal/config"
)

// Bot relays the human's seat to a Telegram chat. It implements
// agent.Prompter.
type Bot struct {
	bot *telego.Bot
	cfg config.TelegramConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending chan string
}

func NewBot(cfg config.TelegramConfig) (*Bot, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{bot: bot, cfg: cfg}, nil
}

// Start polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	ctx, cancel := b.withCancel(ctx)

	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		cancel()
		return fmt.Errorf("create handler: %w", err)
	}

	handler.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		b.handleMessage(ctx, message)
		return nil
	})

	go handler.Start()

	<-ctx.Done()
	_ = handler.Stop()
	return nil
}

// Stop ends a running Start; the handler is stopped there.
func (b *Bot) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Bot) withCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return ctx, cancel
}

// Ask posts the message to the chat and waits for the next text reply.
func (b *Bot) Ask(ctx context.Context, from, message string) (string, error) {
	reply := make(chan string, 1)
	b.mu.Lock()
	b.pending = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.pending == reply {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	if err := b.SendMessage(ctx, b.cfg.ChatID, formatPrompt(from, message)); err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text := <-reply:
		return text, nil
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg telego.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}

	switch b.accept(chatID, userID, text) {
	case rejected:
		slog.Warn("unauthorized telegram user", "user_id", userID, "chat_id", chatID)
	case idle:
		_ = b.SendMessage(ctx, chatID, "Nobody is waiting for your input right now.")
	}
}

type delivery int

const (
	delivered delivery = iota
	rejected
	idle
)

// accept hands text to a waiting Ask when the sender is allowed.
func (b *Bot) accept(chatID, userID int64, text string) delivery {
	if chatID != b.cfg.ChatID {
		return rejected
	}
	if len(b.cfg.AllowFrom) > 0 && !slices.Contains(b.cfg.AllowFrom, userID) {
		return rejected
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return idle
	}
	b.pending <- text
	b.pending = nil
	return delivered
}

func formatPrompt(from, message string) string {
	if message == "" {
		return fmt.Sprintf("[%s] (waiting for your input)", from)
	}
	return fmt.Sprintf("[%s]\n%s", from, message)
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	chunks := chunkMessage(text, maxMessageUnits)
	for _, chunk := range chunks {
		msg := tu.Message(tu.ID(chatID), chunk)
		_, err := b.bot.SendMessage(ctx, msg)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}
