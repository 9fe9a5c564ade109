package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactRepository связки телефон -> чат в мессенджере
type ContactRepository struct {
	*base.Repository
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{Repository: base.NewRepository(pool)}
}

// Upsert привязывает телефон к чату, повторная привязка заменяет чат
func (r *ContactRepository) Upsert(ctx context.Context, c *model.MessengerContact) error {
	query := `
		INSERT INTO messenger_contacts (phone_number, chat_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_number) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			username = EXCLUDED.username,
			linked_at = NOW()
		RETURNING linked_at
	`

	if err := r.QueryRow(ctx, query, c.PhoneNumber, c.ChatID, c.Username).Scan(&c.LinkedAt); err != nil {
		return fmt.Errorf("upsert messenger contact: %w", err)
	}

	return nil
}

// GetByPhone возвращает привязку или nil
func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*model.MessengerContact, error) {
	query := `SELECT phone_number, chat_id, username, linked_at FROM messenger_contacts WHERE phone_number = $1`

	var c model.MessengerContact
	err := r.QueryRow(ctx, query, phone).Scan(&c.PhoneNumber, &c.ChatID, &c.Username, &c.LinkedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get messenger contact: %w", err)
	}

	return &c, nil
}
