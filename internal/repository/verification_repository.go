package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VerificationRepository хранит коды подтверждения телефонов
type VerificationRepository struct {
	*base.Repository
}

func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{Repository: base.NewRepository(pool)}
}

// Get возвращает состояние подтверждения телефона или nil
func (r *VerificationRepository) Get(ctx context.Context, phone string) (*model.VerificationChallenge, error) {
	query := `
		SELECT phone_number, code_hash, expires_at, attempts_remaining, verified, sent_on, sent_count
		FROM verification_challenges
		WHERE phone_number = $1
	`

	var c model.VerificationChallenge
	err := r.QueryRow(ctx, query, phone).Scan(
		&c.PhoneNumber,
		&c.CodeHash,
		&c.ExpiresAt,
		&c.AttemptsRemaining,
		&c.Verified,
		&c.SentOn,
		&c.SentCount,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verification challenge: %w", err)
	}

	c.SentOn = model.TruncateDate(c.SentOn)
	return &c, nil
}

// ReserveSend атомарно учитывает отправку кода за день. Если за сегодня уже limit отправок,
// счётчик не меняется и ok=false. limit <= 0 снимает ограничение
func (r *VerificationRepository) ReserveSend(ctx context.Context, phone string, now time.Time, limit int) (sent int, ok bool, err error) {
	query := `
		INSERT INTO verification_challenges AS v (phone_number, expires_at, sent_on, sent_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (phone_number) DO UPDATE SET
			sent_count = CASE WHEN v.sent_on = EXCLUDED.sent_on THEN v.sent_count + 1 ELSE 1 END,
			sent_on = EXCLUDED.sent_on,
			updated_at = NOW()
		WHERE v.sent_on <> EXCLUDED.sent_on OR v.sent_count < $4 OR $4 <= 0
		RETURNING sent_count
	`

	err = r.QueryRow(ctx, query, phone, now, model.TruncateDate(now), limit).Scan(&sent)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("reserve verification send: %w", err)
	}

	return sent, true, nil
}

// Save записывает новый код. Счётчик отправок у существующей записи ведёт ReserveSend
func (r *VerificationRepository) Save(ctx context.Context, c *model.VerificationChallenge) error {
	query := `
		INSERT INTO verification_challenges (phone_number, code_hash, expires_at, attempts_remaining,
			verified, sent_on, sent_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (phone_number) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts_remaining = EXCLUDED.attempts_remaining,
			verified = EXCLUDED.verified,
			updated_at = NOW()
	`

	_, err := r.ExecAffected(ctx, query,
		c.PhoneNumber, c.CodeHash, c.ExpiresAt, c.AttemptsRemaining, c.Verified, c.SentOn, c.SentCount)
	if err != nil {
		return fmt.Errorf("save verification challenge: %w", err)
	}

	return nil
}

// DecrementAttempts атомарно списывает одну попытку у живого кода.
// На последней попытке код стирается. ok=false означает, что списывать было нечего.
func (r *VerificationRepository) DecrementAttempts(ctx context.Context, phone string, now time.Time) (remaining int, ok bool, err error) {
	query := `
		UPDATE verification_challenges SET
			attempts_remaining = attempts_remaining - 1,
			code_hash = CASE WHEN attempts_remaining <= 1 THEN '' ELSE code_hash END,
			updated_at = NOW()
		WHERE phone_number = $1
			AND code_hash <> ''
			AND verified = FALSE
			AND attempts_remaining > 0
			AND expires_at > $2
		RETURNING attempts_remaining
	`

	err = r.QueryRow(ctx, query, phone, now).Scan(&remaining)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("decrement verification attempts: %w", err)
	}

	return remaining, true, nil
}

// MarkVerified помечает телефон подтверждённым и стирает код, если код не поменялся
func (r *VerificationRepository) MarkVerified(ctx context.Context, phone, codeHash string, until time.Time) (bool, error) {
	query := `
		UPDATE verification_challenges SET
			verified = TRUE,
			code_hash = '',
			expires_at = $3,
			updated_at = NOW()
		WHERE phone_number = $1 AND code_hash = $2 AND verified = FALSE AND attempts_remaining > 0
	`

	affected, err := r.ExecAffected(ctx, query, phone, codeHash, until)
	if err != nil {
		return false, fmt.Errorf("mark phone verified: %w", err)
	}

	return affected > 0, nil
}

// Consume снимает подтверждение. Вернёт true только одному вызывающему
func (r *VerificationRepository) Consume(ctx context.Context, phone string, now time.Time) (bool, error) {
	query := `
		UPDATE verification_challenges SET verified = FALSE, expires_at = $2, updated_at = NOW()
		WHERE phone_number = $1 AND verified = TRUE AND expires_at > $2
	`

	affected, err := r.ExecAffected(ctx, query, phone, now)
	if err != nil {
		return false, fmt.Errorf("consume verification: %w", err)
	}

	return affected > 0, nil
}

// Invalidate стирает код, счётчик отправок за день сохраняется
func (r *VerificationRepository) Invalidate(ctx context.Context, phone string) error {
	query := `
		UPDATE verification_challenges SET code_hash = '', attempts_remaining = 0, updated_at = NOW()
		WHERE phone_number = $1 AND verified = FALSE
	`

	if _, err := r.ExecAffected(ctx, query, phone); err != nil {
		return fmt.Errorf("invalidate verification challenge: %w", err)
	}

	return nil
}

// DeleteStale удаляет истёкшие записи, отправленные до указанного дня
func (r *VerificationRepository) DeleteStale(ctx context.Context, now, today time.Time) (int64, error) {
	query := `DELETE FROM verification_challenges WHERE expires_at < $1 AND sent_on < $2`

	affected, err := r.ExecAffected(ctx, query, now, today)
	if err != nil {
		return 0, fmt.Errorf("delete stale verification challenges: %w", err)
	}

	return affected, nil
}
