package sandbox

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/eyescreen/screening/internal/domain/assessment"
	"github.com/eyescreen/screening/internal/domain/externaleye"
	"github.com/eyescreen/screening/internal/platform/auth"
	"github.com/eyescreen/screening/internal/platform/blobstore"
	"github.com/eyescreen/screening/internal/platform/db"
	"github.com/eyescreen/screening/internal/platform/middleware"
	"github.com/eyescreen/screening/internal/platform/webhook"
)

type Options struct {
	Store  Store
	Blobs  blobstore.BlobStore
	Issuer *auth.Issuer
	Logger zerolog.Logger
	// Pool is reported by /health; nil means the in-memory store.
	Pool *pgxpool.Pool
	// Seed is the default for POST /api/sandbox/seed.
	Seed SeedConfig
	// LoginLimit overrides the login throttle, mainly for tests.
	LoginLimit *middleware.RateLimitConfig
	// Webhooks, when set, receives screening events and mounts
	// /api/sandbox/webhooks for admins.
	Webhooks *webhook.Manager
}

// Server is the sandbox HTTP server.
type Server struct {
	echo        *echo.Echo
	revocations *auth.TokenRevocationStore
	webhooks    *webhook.Manager
	logger      zerolog.Logger
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(opts.Logger)

	e.Use(middleware.Recovery(opts.Logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(opts.Logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.MustBodyLimit(middleware.BodyLimitConfig{JSON: "1M", Upload: "25M"}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept", middleware.RequestIDHeader},
	}))

	revocations := auth.NewTokenRevocationStore(5 * time.Minute)
	jwtCfg := opts.Issuer.Config()
	jwtCfg.Revocations = revocations
	jwtCfg.Skipper = auth.AuthSkipper

	health := db.HealthHandler(opts.Pool)
	e.GET("/health", health)

	api := e.Group("/api",
		middleware.RateLimit(middleware.DefaultRateLimitConfig()),
		auth.JWTMiddleware(jwtCfg),
	)
	api.GET("/health", health)

	loginLimit := middleware.LoginRateLimitConfig()
	if opts.LoginLimit != nil {
		loginLimit = *opts.LoginLimit
	}
	h := NewHandler(opts.Store, opts.Issuer, revocations, opts.Logger)
	if opts.Webhooks != nil {
		h.WithPublisher(opts.Webhooks)
		webhook.NewHandler(opts.Webhooks).
			RegisterRoutes(api, "/sandbox/webhooks", auth.RequireRole(auth.RoleAdmin))
	}
	h.RegisterRoutes(api, middleware.RateLimit(loginLimit))
	NewSeedHandler(opts.Store, opts.Seed).RegisterRoutes(api)

	blobs := blobstore.NewBlobHandler(opts.Blobs, blobstore.HandlerConfig{
		Types: externaleye.AttachmentTypes,
		Lookup: func(ctx context.Context, registrationID int64) (bool, error) {
			_, err := opts.Store.Registration(ctx, registrationID)
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	})
	blobs.RegisterRoutes(api, assessment.KindExternalEye.Path()+"/:registration_id",
		auth.RequireRole(auth.RoleOperator))

	return &Server{echo: e, revocations: revocations, webhooks: opts.Webhooks, logger: opts.Logger}
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting sandbox")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.revocations.Close()
	err := s.echo.Shutdown(ctx)
	if s.webhooks != nil {
		s.webhooks.Wait()
	}
	return err
}
