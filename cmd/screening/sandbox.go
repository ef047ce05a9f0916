package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/eyescreen/screening/internal/config"
	"github.com/eyescreen/screening/internal/platform/auth"
	"github.com/eyescreen/screening/internal/platform/blobstore"
	"github.com/eyescreen/screening/internal/platform/db"
	"github.com/eyescreen/screening/internal/platform/logging"
	"github.com/eyescreen/screening/internal/platform/webhook"
	"github.com/eyescreen/screening/internal/sandbox"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run the local screening API used for development and demos",
	}
	cmd.AddCommand(sandboxServeCmd())
	cmd.AddCommand(sandboxMigrateCmd())
	cmd.AddCommand(sandboxSeedCmd())
	return cmd
}

func loadSandboxConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.ValidateSandbox(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg, cmd.ErrOrStderr()), nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
}

func migrator(pool *pgxpool.Pool) *db.Migrator {
	return db.NewMigrator(pool, sandbox.Migrations, "migrations")
}

func seedFlags(cmd *cobra.Command) {
	def := sandbox.DefaultSeedConfig()
	cmd.Flags().Int("events", def.Events, "Number of events to generate")
	cmd.Flags().Int("patients-per-event", def.PatientsPerEvent, "Registrations per event")
}

func seedConfig(cmd *cobra.Command, cfg *config.Config) sandbox.SeedConfig {
	sc := sandbox.DefaultSeedConfig()
	sc.Events, _ = cmd.Flags().GetInt("events")
	sc.PatientsPerEvent, _ = cmd.Flags().GetInt("patients-per-event")
	sc.Seed = cfg.SandboxSeed
	return sc
}

func sandboxServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sandbox API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadSandboxConfig(cmd)
			if err != nil {
				return err
			}
			reseed, _ := cmd.Flags().GetBool("reseed")
			return runSandbox(cmd.Context(), cfg, logger, seedConfig(cmd, cfg), reseed)
		},
	}
	seedFlags(cmd)
	cmd.Flags().Bool("reseed", false, "Reset and reseed the Postgres store on start (the memory store is always seeded)")
	return cmd
}

func runSandbox(ctx context.Context, cfg *config.Config, logger zerolog.Logger, seed sandbox.SeedConfig, reseed bool) error {
	issuer, err := auth.NewIssuer("screening-sandbox", []byte(cfg.SandboxSigningKey), cfg.SandboxTokenTTL)
	if err != nil {
		return err
	}

	hooks := webhook.NewManager(webhook.NewInMemoryStore(), logger)
	if cfg.SandboxWebhookURL != "" {
		ep, err := hooks.Register(ctx, cfg.SandboxWebhookURL, cfg.SandboxWebhookSecret,
			[]string{webhook.EventAssessmentSaved, webhook.EventRegistrationClosed}, 0)
		if err != nil {
			return fmt.Errorf("SANDBOX_WEBHOOK_URL: %w", err)
		}
		logger.Info().Str("endpoint", ep.ID).Str("url", ep.URL).Msg("webhook registered")
	}

	opts := sandbox.Options{Issuer: issuer, Logger: logger, Seed: seed, Webhooks: hooks}
	if cfg.DatabaseURL != "" {
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

		applied, err := db.EnsureSchema(ctx, pool, cfg.DBSchema, migrator(pool))
		if err != nil {
			return fmt.Errorf("prepare schema: %w", err)
		}
		if applied > 0 {
			logger.Info().Int("count", applied).Msg("applied migrations")
		}
		opts.Pool = pool
		opts.Store = sandbox.NewPGStore(pool)
		opts.Blobs = sandbox.NewPGBlobStore(pool)
	} else {
		opts.Store = sandbox.NewMemoryStore()
		opts.Blobs = blobstore.NewInMemoryBlobStore()
		reseed = true
	}

	if reseed {
		result, err := sandbox.NewSeeder(seed).Run(ctx, opts.Store)
		if err != nil {
			return err
		}
		logger.Info().
			Int("events", result.Events).
			Int("registrations", result.Registrations).
			Dur("duration", result.Duration).
			Msg("sandbox seeded")
	}

	srv := sandbox.NewServer(opts)
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start(":" + cfg.SandboxPort)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info().Msg("shutting down sandbox")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox shutdown failed: %w", err)
	}
	logger.Info().Msg("sandbox stopped")
	return nil
}

func sandboxMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the sandbox Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSandboxConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", cfg.DBSchema)
			count, err := db.EnsureSchema(ctx, pool, cfg.DBSchema, migrator(pool))
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSandboxConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator(pool).Status(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", cfg.DBSchema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

func sandboxSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Reset the Postgres sandbox store to freshly generated data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSandboxConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("%w (the in-memory store is seeded by `sandbox serve`)", err)
			}
			defer pool.Close()

			if _, err := db.EnsureSchema(ctx, pool, cfg.DBSchema, migrator(pool)); err != nil {
				return fmt.Errorf("prepare schema: %w", err)
			}
			result, err := sandbox.NewSeeder(seedConfig(cmd, cfg)).Run(ctx, sandbox.NewPGStore(pool))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d operator(s), %d event(s), %d patient(s), %d registration(s) in %s.\n",
				result.Operators, result.Events, result.Patients, result.Registrations, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	seedFlags(cmd)
	return cmd
}
