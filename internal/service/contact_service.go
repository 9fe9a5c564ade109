package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"go.uber.org/zap"
)

// ContactService привязка телефонов к чатам мессенджера
type ContactService struct {
	repo   ContactStore
	logger *zap.Logger
}

func NewContactService(repo ContactStore, logger *zap.Logger) *ContactService {
	return &ContactService{repo: repo, logger: logger}
}

// LinkContact сохраняет телефон, которым пользователь поделился в чате.
// Принимается только собственный контакт пользователя.
func (s *ContactService) LinkContact(ctx context.Context, chatID, senderID, contactUserID int64, username, phone string) (*model.MessengerContact, error) {
	if contactUserID != senderID {
		return nil, ErrForbidden
	}

	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	contact := &model.MessengerContact{
		PhoneNumber: phone,
		ChatID:      chatID,
		Username:    username,
	}
	if err := s.repo.Upsert(ctx, contact); err != nil {
		return nil, fmt.Errorf("link contact: %w", err)
	}

	s.logger.Info("Messenger contact linked",
		zap.String("phone", phone),
		zap.Int64("chat_id", chatID))

	return contact, nil
}

// ChatForPhone чат для телефона или nil, если телефон не привязан
func (s *ContactService) ChatForPhone(ctx context.Context, phone string) (*model.MessengerContact, error) {
	contact, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}
