package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/templui/magiclink/internal/config"
	"github.com/templui/magiclink/internal/db"
	"github.com/templui/magiclink/internal/middleware"
	"github.com/templui/magiclink/internal/notify"
	"github.com/templui/magiclink/internal/repository"
	"github.com/templui/magiclink/internal/service"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	Redis          *redis.Client
	AuthService    *service.AuthService
	SessionService *service.SessionService
	RateLimiter    middleware.Limiter
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(ctx, cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	accountRepository := repository.NewAccountRepository(database)
	linkTokenRepository := repository.NewLinkTokenRepository(database)

	// Services
	sender := notify.New(notify.Options{
		ResendAPIKey: cfg.ResendAPIKey,
		EmailFrom:    cfg.EmailFrom,
		AppName:      cfg.AppName,
		LinkTTL:      cfg.TokenMagicLinkExpiry,
		IsDev:        cfg.IsDevelopment(),
	})
	issuer := service.NewTokenIssuer(database, accountRepository, linkTokenRepository, cfg.AppURL, cfg.TokenMagicLinkExpiry)
	verifier := service.NewTokenVerifier(database, accountRepository, linkTokenRepository)
	authService := service.NewAuthService(issuer, verifier, sender, accountRepository)
	sessionService := service.NewSessionService(cfg.JWTSecret, cfg.JWTExpiry, cfg.SecureCookies())

	a := &App{
		Cfg:            cfg,
		DB:             database,
		AuthService:    authService,
		SessionService: sessionService,
	}

	// Rate limiting: shared through Redis when configured, per process otherwise
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to parse REDIS_URL: %v", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable at startup, rate limiter will fail open until it recovers", "error", err)
		}
		a.RateLimiter = middleware.NewRedisRateLimiter(a.Redis, "", cfg.RateLimitRequests, cfg.RateLimitWindow)
	} else {
		a.RateLimiter = middleware.NewRateLimiter(ctx, cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	slog.Info("app initialized", "db_driver", cfg.DBDriver, "email_transport", sender.Transport(), "shared_rate_limit", a.Redis != nil)
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, db.Close(a.DB))
	}
	return errors.Join(errs...)
}
