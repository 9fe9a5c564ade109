package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := ""
	if update.Message.From != nil {
		name = update.Message.From.FirstName
	}

	welcomeText := fmt.Sprintf(
		"👋 Здравствуйте, %s!\n\n"+
			"Через этого бота клиника присылает коды подтверждения для записи на приём.\n\n"+
			"Нажмите кнопку ниже, чтобы поделиться номером телефона. "+
			"Используйте тот же номер, что и при записи на сайте.",
		name,
	)

	h.send(ctx, b, &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        welcomeText,
		ReplyMarkup: contactKeyboard(),
	})
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Справка:\n\n" +
		"/start - Привязать номер телефона\n" +
		"/help - Показать эту справку\n\n" +
		"После привязки коды подтверждения будут приходить в этот чат."

	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleContact сохраняет номер, которым пользователь поделился
func (h *Handlers) HandleContact(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Contact == nil || msg.From == nil {
		return
	}

	_, err := h.contacts.LinkContact(ctx, msg.Chat.ID, msg.From.ID, msg.Contact.UserID, msg.From.Username, msg.Contact.PhoneNumber)
	switch {
	case errors.Is(err, service.ErrForbidden):
		h.sendError(ctx, b, msg.Chat.ID, "❌ Можно привязать только свой номер. Нажмите кнопку «Поделиться номером».")
		return
	case errors.Is(err, service.ErrInvalidInput):
		h.sendError(ctx, b, msg.Chat.ID, "❌ Не удалось распознать номер телефона.")
		return
	case err != nil:
		h.logger.Error("Failed to link contact", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		h.sendError(ctx, b, msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	h.send(ctx, b, &bot.SendMessageParams{
		ChatID:      msg.Chat.ID,
		Text:        "✅ Номер привязан. Коды подтверждения будут приходить сюда.",
		ReplyMarkup: &models.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
}

// IsContactMessage подходит ли обновление для HandleContact
func IsContactMessage(update *models.Update) bool {
	return update.Message != nil && update.Message.Contact != nil
}
