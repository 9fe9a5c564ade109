package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Имена эндпоинтов для лимитера
const (
	EndpointSendCode   = "verification_send"
	EndpointVerifyCode = "verification_verify"
)

// RateLimiter скользящее окно обращений клиента к эндпоинту
type RateLimiter struct {
	repo   RateLimitStore
	limit  int
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewRateLimiter(repo RateLimitStore, limitPerMinute int, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		repo:   repo,
		limit:  limitPerMinute,
		window: time.Minute,
		now:    time.Now,
		logger: logger,
	}
}

// Allow учитывает обращение или возвращает ErrRateLimited, если бюджет окна исчерпан.
// Проверка и запись выполняются хранилищем за один шаг, отклонённые обращения не записываются.
func (l *RateLimiter) Allow(ctx context.Context, clientKey, endpoint string) error {
	if l.limit <= 0 {
		return nil
	}

	now := l.now()
	recorded, err := l.repo.RecordIfBelow(ctx, clientKey, endpoint, now.Add(-l.window), now, l.limit)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}

	if !recorded {
		l.logger.Warn("Rate limit exceeded",
			zap.String("client", clientKey),
			zap.String("endpoint", endpoint),
			zap.Int("limit", l.limit))
		return ErrRateLimited
	}

	return nil
}

// Purge удаляет обращения старше суток
func (l *RateLimiter) Purge(ctx context.Context) (int64, error) {
	return l.repo.PurgeBefore(ctx, l.now().Add(-24*time.Hour))
}
