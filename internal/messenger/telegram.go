package messenger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

var (
	// ErrNotLinked телефон не привязан ни к одному чату
	ErrNotLinked = errors.New("phone is not linked to a messenger chat")
	// ErrDisabled канал не настроен
	ErrDisabled = errors.New("messenger channel is disabled")
)

// MessageSender часть API бота, нужная для отправки. *bot.Bot подходит
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ContactLookup поиск чата по телефону
type ContactLookup interface {
	ChatForPhone(ctx context.Context, phone string) (*model.MessengerContact, error)
}

// TelegramChannel доставляет коды подтверждения в Telegram
type TelegramChannel struct {
	api      MessageSender
	contacts ContactLookup
	codeTTL  time.Duration
	logger   *zap.Logger
}

// NewTelegramChannel codeTTL попадает в текст сообщения, это срок жизни кода из настроек
func NewTelegramChannel(api MessageSender, contacts ContactLookup, codeTTL time.Duration, logger *zap.Logger) *TelegramChannel {
	return &TelegramChannel{
		api:      api,
		contacts: contacts,
		codeTTL:  codeTTL,
		logger:   logger,
	}
}

// SendCode отправляет код в чат, привязанный к телефону
func (c *TelegramChannel) SendCode(ctx context.Context, phone, code string) error {
	contact, err := c.contacts.ChatForPhone(ctx, phone)
	if err != nil {
		return fmt.Errorf("find chat: %w", err)
	}
	if contact == nil {
		return ErrNotLinked
	}

	_, err = c.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: contact.ChatID,
		Text:   CodeMessage(code, c.codeTTL),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.logger.Debug("Verification code delivered", zap.Int64("chat_id", contact.ChatID))
	return nil
}

// CodeMessage текст сообщения с кодом. Срок округляется до минут, без срока строка о нём опускается
func CodeMessage(code string, ttl time.Duration) string {
	text := fmt.Sprintf("🔐 Ваш код подтверждения для записи на приём: %s", code)
	if ttl <= 0 {
		return text
	}

	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%s\n\nКод действителен %d %s.", text, minutes, minutesWord(minutes))
}

// minutesWord согласует слово "минута" с числом
func minutesWord(n int) string {
	switch n10, n100 := n%10, n%100; {
	case n10 == 1 && n100 != 11:
		return "минуту"
	case n10 >= 2 && n10 <= 4 && (n100 < 12 || n100 > 14):
		return "минуты"
	default:
		return "минут"
	}
}

// DisabledChannel используется без токена бота: доставка всегда падает
// и код уходит по резервной ветке.
type DisabledChannel struct{}

func (DisabledChannel) SendCode(context.Context, string, string) error {
	return ErrDisabled
}
