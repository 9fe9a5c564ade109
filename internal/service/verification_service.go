package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeLength     = 6
	minPhoneDigits = 10
	maxPhoneDigits = 15
)

// CodeSender канал доставки кода (мессенджер)
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// RequestLimiter проверка частоты запросов перед работой с кодом
type RequestLimiter interface {
	Allow(ctx context.Context, clientKey, endpoint string) error
}

// VerificationConfig параметры подтверждения телефона
type VerificationConfig struct {
	CodeTTL         time.Duration
	VerifiedTTL     time.Duration
	MaxAttempts     int
	DailyLimit      int
	BcryptCost      int
	FallbackEnabled bool
}

// SendResult ответ на отправку кода. FallbackCode заполняется, только если
// канал доставки не сработал и разрешено показать код пользователю.
type SendResult struct {
	Sent         bool   `json:"sent"`
	FallbackCode string `json:"fallback_code,omitempty"`
}

// VerificationService подтверждение телефона кодом
type VerificationService struct {
	repo    VerificationStore
	limiter RequestLimiter
	sender  CodeSender
	cfg     VerificationConfig
	now     func() time.Time
	logger  *zap.Logger
}

func NewVerificationService(
	repo VerificationStore,
	limiter RequestLimiter,
	sender CodeSender,
	cfg VerificationConfig,
	logger *zap.Logger,
) *VerificationService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &VerificationService{
		repo:    repo,
		limiter: limiter,
		sender:  sender,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// NormalizePhone оставляет только цифры
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", fmt.Errorf("%w: invalid phone number format", ErrInvalidInput)
	}

	return digits, nil
}

// Send генерирует новый код и отправляет его. Предыдущий код перезаписывается
func (s *VerificationService) Send(ctx context.Context, phone, clientKey string) (*SendResult, error) {
	if err := s.limiter.Allow(ctx, clientKey, EndpointSendCode); err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	now := s.now()

	sentToday, ok, err := s.repo.ReserveSend(ctx, phone, now, s.cfg.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("reserve send: %w", err)
	}
	if !ok {
		s.logger.Warn("Daily verification limit reached", zap.String("phone", phone))
		return nil, fmt.Errorf("%w: daily code limit reached", ErrRateLimited)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	challenge := &model.VerificationChallenge{
		PhoneNumber:       phone,
		CodeHash:          string(hash),
		ExpiresAt:         now.Add(s.cfg.CodeTTL),
		AttemptsRemaining: s.cfg.MaxAttempts,
		SentOn:            model.TruncateDate(now),
		SentCount:         sentToday,
	}
	if err := s.repo.Save(ctx, challenge); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		s.logger.Warn("Failed to deliver verification code",
			zap.String("phone", phone),
			zap.Bool("fallback", s.cfg.FallbackEnabled),
			zap.Error(err))

		if !s.cfg.FallbackEnabled {
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		return &SendResult{Sent: true, FallbackCode: code}, nil
	}

	s.logger.Info("Verification code sent", zap.String("phone", phone))
	return &SendResult{Sent: true}, nil
}

// Verify проверяет код. Неверный код списывает попытку, на нуле код сгорает
func (s *VerificationService) Verify(ctx context.Context, phone, code, clientKey string) error {
	if err := s.limiter.Allow(ctx, clientKey, EndpointVerifyCode); err != nil {
		return err
	}

	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	now := s.now()

	challenge, err := s.repo.Get(ctx, phone)
	if err != nil {
		return fmt.Errorf("get challenge: %w", err)
	}

	if challenge == nil || challenge.CodeHash == "" || challenge.Verified || challenge.AttemptsRemaining <= 0 {
		return ErrInvalidCode
	}

	if challenge.IsExpired(now) {
		if err := s.repo.Invalidate(ctx, phone); err != nil {
			return fmt.Errorf("invalidate challenge: %w", err)
		}
		return ErrCodeExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(code)) != nil {
		remaining, ok, err := s.repo.DecrementAttempts(ctx, phone, now)
		if err != nil {
			return fmt.Errorf("decrement attempts: %w", err)
		}

		s.logger.Info("Wrong verification code",
			zap.String("phone", phone),
			zap.Bool("counted", ok),
			zap.Int("attempts_remaining", remaining))

		return ErrInvalidCode
	}

	// Код мог смениться или сгореть между чтением и записью
	ok, err := s.repo.MarkVerified(ctx, phone, challenge.CodeHash, now.Add(s.cfg.VerifiedTTL))
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if !ok {
		return ErrInvalidCode
	}

	s.logger.Info("Phone verified", zap.String("phone", phone))
	return nil
}

// Cancel пользователь отказался от кода, возвращаемся к форме
func (s *VerificationService) Cancel(ctx context.Context, phone string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	if err := s.repo.Invalidate(ctx, phone); err != nil {
		return fmt.Errorf("invalidate challenge: %w", err)
	}

	return nil
}

// IsVerified подтверждён ли телефон прямо сейчас
func (s *VerificationService) IsVerified(ctx context.Context, phone string) (bool, error) {
	challenge, err := s.repo.Get(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("get challenge: %w", err)
	}

	return challenge != nil && challenge.IsVerifiedAt(s.now()), nil
}

// ConsumeVerification снимает подтверждение. true получает ровно один вызывающий
func (s *VerificationService) ConsumeVerification(ctx context.Context, phone string) (bool, error) {
	ok, err := s.repo.Consume(ctx, phone, s.now())
	if err != nil {
		return false, fmt.Errorf("consume verification: %w", err)
	}
	return ok, nil
}

// Cleanup удаляет записи, которые уже не влияют ни на проверку, ни на дневной лимит
func (s *VerificationService) Cleanup(ctx context.Context) (int64, error) {
	now := s.now()
	return s.repo.DeleteStale(ctx, now, model.TruncateDate(now))
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", codeLength, n.Int64()), nil
}
