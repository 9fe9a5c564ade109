package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/clinic_portal/internal/app"
	"github.com/Freeeeeet/clinic_portal/internal/config"
	"github.com/Freeeeeet/clinic_portal/internal/controller/httpapi"
	"github.com/Freeeeeet/clinic_portal/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "portal",
		Short:        "Clinic booking portal: slots, phone verification and bookings",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the Telegram bot and housekeeping jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("Starting clinic portal",
				zap.String("environment", cfg.Environment),
				zap.String("port", cfg.Port),
				zap.Bool("telegram", cfg.TelegramToken != ""))

			app.New(cfg, logger).Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *app.Migrator) error {
				return m.Run(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *app.Migrator) error {
				return m.Status(ctx)
			})
		},
	})

	return cmd
}

// tokenCmd выпускает токен сессии для локальной проверки API
func tokenCmd() *cobra.Command {
	var (
		role     string
		doctorID int64
		phone    string
		subject  string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed session token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			actor := service.Actor{Role: service.Role(role), DoctorID: doctorID, Phone: phone, Subject: subject}
			if !actor.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := httpapi.IssueToken([]byte(cfg.JWTSecret), actor, ttl, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", string(service.RoleRegistrar), "patient, doctor, registrar or admin")
	cmd.Flags().Int64Var(&doctorID, "doctor-id", 0, "doctor id for the doctor role")
	cmd.Flags().StringVar(&phone, "phone", "", "patient phone number")
	cmd.Flags().StringVar(&subject, "subject", "", "login written to the activity log")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")

	return cmd
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return nil, nil, err
	}
	return cfg, logger, nil
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *app.Migrator) error) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := app.NewPool(ctx, cfg.GetDBDSN(), cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return fn(ctx, migrator)
}
