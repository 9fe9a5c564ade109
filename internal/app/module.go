package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Freeeeeet/clinic_portal/internal/config"
	"github.com/Freeeeeet/clinic_portal/internal/controller"
	"github.com/Freeeeeet/clinic_portal/internal/controller/httpapi"
	"github.com/Freeeeeet/clinic_portal/internal/messenger"
	"github.com/Freeeeeet/clinic_portal/internal/repository"
	"github.com/Freeeeeet/clinic_portal/internal/repository/base"
	"github.com/Freeeeeet/clinic_portal/internal/service"
)

// New собирает приложение: база, сервисы, HTTP API, бот и фоновые задачи
func New(cfg *config.Config, logger *zap.Logger) *fx.App {
	return fx.New(
		fx.Supply(cfg, logger),
		fx.WithLogger(fxLogger),
		fx.Provide(
			providePool,
			base.NewTransactor,
			repository.NewDoctorRepository,
			repository.NewScheduleRepository,
			repository.NewCalendarRepository,
			repository.NewBookingRepository,
			repository.NewVerificationRepository,
			repository.NewRateLimitRepository,
			repository.NewActivityRepository,
			repository.NewContactRepository,
			provideRateLimiter,
			provideContactService,
			provideBot,
			provideCodeSender,
			provideVerificationService,
			provideActivityService,
			provideSlotEngine,
			provideBookingService,
			provideScheduleService,
			provideHandler,
			NewServer,
			provideScheduler,
		),
		fx.Invoke(applyMigrations, startBot, startServer, startScheduler),
	)
}

func providePool(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, cfg.GetDBDSN(), cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info("✅ Connected to database")

	lc.Append(fx.StopHook(pool.Close))
	return pool, nil
}

func provideRateLimiter(repo *repository.RateLimitRepository, cfg *config.Config, logger *zap.Logger) *service.RateLimiter {
	return service.NewRateLimiter(repo, cfg.RateLimitPerMinute, logger)
}

func provideContactService(repo *repository.ContactRepository, logger *zap.Logger) *service.ContactService {
	return service.NewContactService(repo, logger)
}

// provideBot возвращает nil, если токен не задан: бот и доставка кодов тогда выключены
func provideBot(cfg *config.Config, logger *zap.Logger) (*bot.Bot, error) {
	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN is not set, messenger delivery is disabled")
		return nil, nil
	}

	return bot.New(cfg.TelegramToken, bot.WithErrorsHandler(func(err error) {
		logger.Error("Telegram bot error", zap.Error(err))
	}))
}

func provideCodeSender(b *bot.Bot, contacts *service.ContactService, cfg *config.Config, logger *zap.Logger) service.CodeSender {
	if b == nil {
		return messenger.DisabledChannel{}
	}
	return messenger.NewTelegramChannel(b, contacts, cfg.VerificationTTL, logger)
}

func provideVerificationService(
	repo *repository.VerificationRepository,
	limiter *service.RateLimiter,
	sender service.CodeSender,
	cfg *config.Config,
	logger *zap.Logger,
) *service.VerificationService {
	return service.NewVerificationService(repo, limiter, sender, service.VerificationConfig{
		CodeTTL:         cfg.VerificationTTL,
		VerifiedTTL:     cfg.VerifiedTTL,
		MaxAttempts:     cfg.VerificationAttempts,
		DailyLimit:      cfg.VerificationDaily,
		BcryptCost:      cfg.BcryptCost,
		FallbackEnabled: cfg.FallbackEnabled,
	}, logger)
}

func provideActivityService(repo *repository.ActivityRepository, logger *zap.Logger) *service.ActivityService {
	return service.NewActivityService(repo, logger)
}

func provideSlotEngine(
	schedules *repository.ScheduleRepository,
	calendar *repository.CalendarRepository,
	bookings *repository.BookingRepository,
	logger *zap.Logger,
) *service.SlotEngine {
	return service.NewSlotEngine(schedules, calendar, bookings, logger)
}

func provideBookingService(
	tx *base.Transactor,
	doctors *repository.DoctorRepository,
	bookings *repository.BookingRepository,
	engine *service.SlotEngine,
	gate *service.VerificationService,
	activity *service.ActivityService,
	cfg *config.Config,
	logger *zap.Logger,
) (*service.BookingService, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return service.NewBookingService(tx, doctors, bookings, engine, gate, activity, location, logger), nil
}

func provideScheduleService(
	tx *base.Transactor,
	doctors *repository.DoctorRepository,
	schedules *repository.ScheduleRepository,
	calendar *repository.CalendarRepository,
	bookings *repository.BookingRepository,
	activity *service.ActivityService,
	logger *zap.Logger,
) *service.ScheduleService {
	return service.NewScheduleService(tx, doctors, schedules, calendar, bookings, activity, logger)
}

func provideHandler(
	engine *service.SlotEngine,
	verification *service.VerificationService,
	bookings *service.BookingService,
	schedules *service.ScheduleService,
	activity *service.ActivityService,
	pool *pgxpool.Pool,
	logger *zap.Logger,
) *httpapi.Handler {
	return httpapi.NewHandler(engine, verification, bookings, schedules, activity, pool, logger)
}

func provideScheduler(
	cfg *config.Config,
	verification *service.VerificationService,
	limiter *service.RateLimiter,
	logger *zap.Logger,
) *Scheduler {
	return NewScheduler(cfg.HousekeepingCron, verification, limiter, logger)
}

func applyMigrations(lc fx.Lifecycle, pool *pgxpool.Pool, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			migrator, err := NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()
			return migrator.Run(ctx)
		},
	})
}

func startBot(lc fx.Lifecycle, b *bot.Bot, contacts *service.ContactService, logger *zap.Logger) {
	if b == nil {
		return
	}

	ctrl := controller.NewBotController(b, contacts, logger)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ctrl.RegisterHandlers(ctx); err != nil {
				cancel()
				return err
			}
			go func() {
				defer close(done)
				if err := ctrl.Start(runCtx); err != nil {
					logger.Error("Bot stopped with error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			addr := ":" + cfg.Port
			logger.Info("Starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server")
			return e.Shutdown(ctx)
		},
	})
}

func startScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			s.Stop(ctx)
			return nil
		},
	})
}
