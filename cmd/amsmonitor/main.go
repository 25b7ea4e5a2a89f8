package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/amsmonitor/internal/config"
	"github.com/ehr/amsmonitor/internal/domain/patient"
	"github.com/ehr/amsmonitor/internal/domain/roster"
	"github.com/ehr/amsmonitor/internal/platform/advisory"
	"github.com/ehr/amsmonitor/internal/platform/db"
	"github.com/ehr/amsmonitor/internal/platform/metrics"
	"github.com/ehr/amsmonitor/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "amsmonitor",
		Short: "Antimicrobial stewardship monitoring server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rosterCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the stewardship API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolSettings(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func poolSettings(cfg *config.Config) db.PoolSettings {
	return db.PoolSettings{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          cfg.DBMinConns,
		MaxConnLifetime:   cfg.DBMaxConnLifetime,
		MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
		HealthCheckPeriod: cfg.DBHealthCheckPeriod,
	}
}

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect the stewardship roster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "kpis",
		Short: "Print roster KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, closeFn, err := openRoster(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			sum, err := svc.Summary(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd, sum)
			return nil
		},
	})

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the roster to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			out, _ := cmd.Flags().GetString("out")
			if _, err := roster.Lookup(filter); err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("ams-roster-%s-%s.xlsx", filter, time.Now().Format("20060102"))
			}

			ctx := context.Background()
			svc, closeFn, err := openRoster(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()

			if err := svc.Export(ctx, f, filter); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
			return nil
		},
	}
	exportCmd.Flags().String("filter", roster.FilterActive, "Roster filter (active, red_flag, new, nearing_stop)")
	exportCmd.Flags().String("out", "", "Output file (default ams-roster-<filter>-<date>.xlsx)")
	cmd.AddCommand(exportCmd)

	return cmd
}

func printSummary(cmd *cobra.Command, sum roster.Summary) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Roster as of %s\n", sum.AsOf.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "%-14s %d\n", "Active", sum.ActiveCount)
	fmt.Fprintf(w, "%-14s %d\n", "Red flag", sum.RedFlagCount)
	fmt.Fprintf(w, "%-14s %d\n", "New (24h)", sum.NewCount)
	fmt.Fprintf(w, "%-14s %d\n", "Nearing stop", sum.NearingStopCount)
}

func openRoster(ctx context.Context) (*roster.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	patients := patient.NewService(b.store, zerolog.Nop())
	patients.SetLocation(loc)
	svc := roster.NewService(patients)
	svc.SetClock(func() time.Time { return time.Now().In(loc) })
	return svc, b.close, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// backend is the configured document store plus its health endpoint.
type backend struct {
	store      patient.Store
	healthPath string
	health     echo.HandlerFunc
	close      func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return &backend{
			store:      patient.NewRedisStore(client, cfg.RedisKeyPrefix),
			healthPath: "/health/redis",
			health:     db.RedisHealthHandler(client),
			close:      func() { client.Close() },
		}, nil
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolSettings(cfg))
		if err != nil {
			return nil, err
		}
		return &backend{
			store:      patient.NewPGStore(pool),
			healthPath: "/health/db",
			health:     db.HealthHandler(pool),
			close:      pool.Close,
		}, nil
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, b *backend) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	patientSvc := patient.NewService(b.store, logger)
	patientSvc.SetMetrics(m)
	patientSvc.SetLocation(loc)

	rosterSvc := roster.NewService(patientSvc)
	rosterSvc.SetMetrics(m)
	rosterSvc.SetClock(func() time.Time { return time.Now().In(loc) })

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Actor())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.ActorHeader, advisory.SessionHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	roster.NewHandler(rosterSvc).RegisterRoutes(apiV1)

	if cfg.AdvisoryEnabled() {
		checker := advisory.NewChecker(
			advisory.NewClient(cfg.AdvisoryURL, cfg.AdvisoryTimeout),
			cfg.AdvisoryQuietPeriod,
			logger,
		)
		checker.SetMetrics(m)
		advisory.NewHandler(checker).RegisterRoutes(apiV1)
		logger.Info().Str("url", cfg.AdvisoryURL).Msg("advisory checks enabled")
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET(b.healthPath, b.health)
	e.GET("/metrics", metrics.Handler(registry))

	return e, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Store
	ctx := context.Background()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to connect to store")
	}
	defer b.close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("connected to store")

	e, err := newServer(cfg, logger, b)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
