package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository журнал обращений к защищённым эндпоинтам
type RateLimitRepository struct {
	*base.Repository
	tx *base.Transactor
}

func NewRateLimitRepository(pool *pgxpool.Pool) *RateLimitRepository {
	return &RateLimitRepository{
		Repository: base.NewRepository(pool),
		tx:         base.NewTransactor(pool),
	}
}

// RecordIfBelow фиксирует обращение, только если с момента since их было меньше limit.
// Вызовы с одним ключом выполняются по очереди под advisory lock транзакции
func (r *RateLimitRepository) RecordIfBelow(
	ctx context.Context,
	clientKey, endpoint string,
	since, at time.Time,
	limit int,
) (bool, error) {
	lockQuery := `SELECT pg_advisory_xact_lock(hashtext($1::text || '|' || $2::text))`
	insertQuery := `
		INSERT INTO rate_limit_hits (client_key, endpoint, created_at)
		SELECT $1, $2, $4
		WHERE (
			SELECT COUNT(*)
			FROM rate_limit_hits
			WHERE client_key = $1 AND endpoint = $2 AND created_at > $3
		) < $5
	`

	var recorded bool
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.ExecAffected(ctx, lockQuery, clientKey, endpoint); err != nil {
			return fmt.Errorf("lock rate limit key: %w", err)
		}

		affected, err := r.ExecAffected(ctx, insertQuery, clientKey, endpoint, since, at, limit)
		if err != nil {
			return fmt.Errorf("record rate limit hit: %w", err)
		}

		recorded = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return recorded, nil
}

// PurgeBefore удаляет старые обращения
func (r *RateLimitRepository) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM rate_limit_hits WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge rate limit hits: %w", err)
	}

	return affected, nil
}
