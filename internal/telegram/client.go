// Package telegram sends index notifications via the Telegram Bot API:
// extreme-reading alerts, fetch-error notices, and recovery notices.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arkodell/cpmi/internal/models"
)

// StatusFunc renders the current index for the /index bot command.
type StatusFunc func() string

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	status         StatusFunc
}

// NewClient creates a new Telegram client. status may be nil, which
// disables the /index command.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration, status StatusFunc) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		status:         status,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates
// and handles bot commands. It returns immediately; the goroutine
// stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "index":
		if c.status == nil {
			return
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, c.status())
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a cycle error notification. Call this only on the
// first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Index cycle error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive
// failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Index computation recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendIndexAlert notifies that the index crossed the configured
// extreme threshold, with the category breakdown attached.
func (c *Client) SendIndexAlert(value, baseline float64, categories map[string]models.CategoryBreakdown) error {
	return c.sendMarkdownV2(formatAlert(value, baseline, categories))
}

func formatAlert(value, baseline float64, categories map[string]models.CategoryBreakdown) string {
	deviation := value - baseline
	arrow := "📈"
	if deviation < 0 {
		arrow = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *CPMI extreme reading*\n\n", arrow)
	fmt.Fprintf(&b, "Index: *%s* \\(%s from baseline\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", value)),
		escapeMarkdownV2(fmt.Sprintf("%+.2f", deviation)),
	)
	fmt.Fprintf(&b, "Sentiment: %s\n", escapeMarkdownV2(models.Interpret(value, baseline)))

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cat := categories[name]
		if cat.Index == nil {
			continue
		}
		fmt.Fprintf(&b, "\n• %s: %s \\(%s\\)",
			escapeMarkdownV2(name),
			escapeMarkdownV2(fmt.Sprintf("%.1f", *cat.Index)),
			escapeMarkdownV2(cat.Interpretation),
		)
	}

	return b.String()
}

// escapeMarkdownV2 escapes the characters Telegram's MarkdownV2 parse
// mode treats as syntax.
func escapeMarkdownV2(s string) string {
	const special = "_*[]()~`>#+-=|{}.!"
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
