package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinicagenda/agenda/internal/config"
	"github.com/clinicagenda/agenda/internal/domain/calendar"
	"github.com/clinicagenda/agenda/internal/domain/collision"
	"github.com/clinicagenda/agenda/internal/domain/patient"
	"github.com/clinicagenda/agenda/internal/domain/scheduling"
	"github.com/clinicagenda/agenda/internal/domain/settings"
	"github.com/clinicagenda/agenda/internal/platform/auth"
	"github.com/clinicagenda/agenda/internal/platform/cache"
	"github.com/clinicagenda/agenda/internal/platform/datasource"
	"github.com/clinicagenda/agenda/internal/platform/db"
	"github.com/clinicagenda/agenda/internal/platform/housekeeping"
	"github.com/clinicagenda/agenda/internal/platform/middleware"
	"github.com/clinicagenda/agenda/internal/platform/tenant"
	"github.com/clinicagenda/agenda/internal/platform/websocket"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// authMiddleware picks the principal source for the resolved auth mode.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	switch cfg.ResolvedAuthMode() {
	case "development":
		return auth.DevAuthMiddleware(cfg.DefaultTenant)
	case "external":
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		})
	default:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, _ := cfg.Location()
	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Str("timezone", loc.String()).Msg("configuration loaded")

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Cache
	agendaCache, err := cache.New(ctx, cfg.RedisURL, cfg.CacheTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("cache unavailable, reading from database only")
		agendaCache = cache.Nop{}
	}
	defer agendaCache.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", tenant.TenantHeader, tenant.ProfessionalHeader},
	}))
	e.Use(middleware.RequestTimeout(30*time.Second, "/api/v1/ws"))

	// Rate limiting
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// API groups. The clinic selector only needs a principal; everything
	// else runs with a resolved tenant scope.
	tenantStore := db.NewTenantStore(pool)
	authMW := authMiddleware(cfg)
	account := e.Group("/api/v1", authMW, middleware.RateLimit(rateLimitCfg))
	apiV1 := e.Group("/api/v1", authMW, middleware.RateLimit(rateLimitCfg), tenant.Middleware(tenant.Config{
		DefaultTenant: cfg.DefaultTenant,
		DemoTenant:    cfg.DemoTenant,
		Memberships:   tenantStore,
		Logger:        logger,
	}))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.Dependency{Name: "cache", Ping: agendaCache.Ping}))

	// Live updates
	hub := websocket.NewHub(logger)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Repositories and read sources
	profileRepo := settings.NewProfileRepoPG(pool)
	availabilityRepo := settings.NewAvailabilityRepoPG(pool)
	blockRepo := settings.NewBlockRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	appointmentRepo := scheduling.NewAppointmentRepoPG(pool)

	live := datasource.NewLive(datasource.Repositories{
		Profiles:     profileRepo,
		Availability: availabilityRepo,
		Blocks:       blockRepo,
		Patients:     patientRepo,
		Appointments: appointmentRepo,
	}, agendaCache, logger)
	router := datasource.NewRouter(live, datasource.NewFixture(datasource.DefaultSeed, loc))
	detector := collision.NewDetector(loc)

	// Domain services
	settingsSvc := settings.NewService(profileRepo, availabilityRepo, blockRepo, router, agendaCache, hub, logger)
	settings.NewHandler(settingsSvc).RegisterRoutes(apiV1)

	patientSvc := patient.NewService(patientRepo, router, hub, logger)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	schedulingSvc := scheduling.NewService(appointmentRepo, router, router, patientSvc, detector, hub, logger)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	calendarSvc := calendar.NewService(schedulingSvc, router, router, detector, logger)
	calendar.NewHandler(calendarSvc).RegisterRoutes(apiV1)

	// Principal and clinic selector
	apiV1.GET("/me", tenant.Me)
	tenant.NewHandler(tenantStore, cfg.DemoTenant).RegisterRoutes(account)

	// Housekeeping
	job := housekeeping.NewJob(blockRepo, cfg.BlockRetentionDays, logger)
	scheduler, err := housekeeping.NewScheduler(job, cfg.HousekeepingSchedule, loc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule housekeeping")
	}
	scheduler.Start()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
