package handlers

import (
	"context"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"go.uber.org/zap"
)

// ContactLinker привязка телефона к чату
type ContactLinker interface {
	LinkContact(ctx context.Context, chatID, senderID, contactUserID int64, username, phone string) (*model.MessengerContact, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	contacts ContactLinker
	logger   *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(contacts ContactLinker, logger *zap.Logger) *Handlers {
	return &Handlers{
		contacts: contacts,
		logger:   logger,
	}
}
