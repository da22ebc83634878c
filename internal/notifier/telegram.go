package notifier

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"HomeworkSentinel/internal/model"
)

// maxRetries bounds resending after a failed delivery.
const maxRetries = 1

// BotSender is the part of *tgbotapi.BotAPI the notifier uses.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramBot creates a bot client with optional proxy support. An empty
// apiEndpoint selects the public Bot API. The getMe check is best-effort:
// when Telegram is unreachable at startup the client is still returned and
// delivery is retried on every cycle.
func NewTelegramBot(botToken, apiEndpoint, proxyURL string) *tgbotapi.BotAPI {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	bot := &tgbotapi.BotAPI{
		Token:  botToken,
		Buffer: 100,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
	bot.SetAPIEndpoint(apiEndpoint)

	self, err := bot.GetMe()
	if err != nil {
		log.Printf("[WARN] notifier: authorize telegram bot: %v", redact(err, botToken))
		return bot
	}
	bot.Self = self
	log.Printf("[INFO] notifier: authorized as @%s", self.UserName)
	return bot
}

// redactedError hides the bot token, which the Bot API carries in the
// request path and therefore in transport errors.
type redactedError struct {
	err   error
	token string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.token, "***")
}

func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if err == nil || token == "" {
		return err
	}
	return &redactedError{err: err, token: token}
}

// TelegramNotifier sends messages to a single chat.
type TelegramNotifier struct {
	Bot        BotSender
	ChatID     string
	RetryDelay time.Duration
	// Token is masked in every returned error.
	Token string
}

// NewTelegramNotifier creates a notifier for chatID, which is either a
// numeric chat id or a channel username such as "@channel".
func NewTelegramNotifier(bot BotSender, chatID string, retryDelay time.Duration) *TelegramNotifier {
	n := &TelegramNotifier{
		Bot:        bot,
		ChatID:     chatID,
		RetryDelay: retryDelay,
	}
	if b, ok := bot.(*tgbotapi.BotAPI); ok {
		n.Token = b.Token
	}
	return n
}

func (t *TelegramNotifier) message(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(t.ChatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(t.ChatID, text)
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(text string) error {
	if _, err := t.Bot.Send(t.message(text)); err != nil {
		return fmt.Errorf("send message: %w", redact(err, t.Token))
	}
	return nil
}

// SendWithRetry sends a message and retries once after RetryDelay on failure.
// The final failure is returned as a *model.DeliveryError.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	attempts := 0
	for i := 0; i <= maxRetries; i++ {
		attempts++
		lastErr = t.Send(text)
		if lastErr == nil {
			log.Printf("[INFO] notifier: message sent to chat %s", t.ChatID)
			return nil
		}
		if i == maxRetries {
			break
		}
		log.Printf("[WARN] notifier: send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, lastErr, t.RetryDelay)
		select {
		case <-ctx.Done():
			return &model.DeliveryError{ChatID: t.ChatID, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(t.RetryDelay):
		}
	}
	return &model.DeliveryError{ChatID: t.ChatID, Attempts: attempts, Err: lastErr}
}
