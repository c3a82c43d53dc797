// Package app composes the engine from config: stores, notifiers, and the
// auth, token, and verification services. Embedding programs and the bundled
// binaries use it instead of wiring the graph by hand.
package app

import (
	"context"
	"log/slog"

	"user-auth-service/internal/auth"
	"user-auth-service/internal/clock"
	"user-auth-service/internal/config"
	"user-auth-service/internal/db"
	"user-auth-service/internal/notification"
	"user-auth-service/internal/security"
	sessionrepo "user-auth-service/internal/session/repository"
	"user-auth-service/internal/telemetry"
	"user-auth-service/internal/token"
	userrepo "user-auth-service/internal/user/repository"
	"user-auth-service/internal/verification"
	"user-auth-service/internal/verification/domain"
	verificationstore "user-auth-service/internal/verification/store"
)

// App is the assembled engine. Close releases the store connections.
type App struct {
	Auth         *auth.Service
	Tokens       *token.Service
	Verification *verification.Service
	Users        userrepo.Repository
	Sessions     sessionrepo.Repository

	closers []func() error
}

// New builds the engine from cfg. Postgres is required; without REDIS_ADDR
// verification state lives in process memory, which only suits development.
// metrics may be nil to disable instrumentation.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *telemetry.Metrics) (*App, error) {
	a := &App{}

	pg, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pg.Close)

	var codeStore verificationstore.Store
	if cfg.RedisAddr != "" {
		rdb, err := db.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		codeStore = verificationstore.NewRedisStore(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set; verification state is in-memory and lost on restart")
		codeStore = verificationstore.NewMemoryStore(nil)
	}

	clk := clock.NewSystem()
	codec := security.NewCodec(security.StaticKey(cfg.JWTSecret), cfg.AccessTTL())
	a.Users = userrepo.NewPostgresRepository(pg)
	a.Sessions = sessionrepo.NewPostgresRepository(pg)

	a.Tokens = token.NewService(a.Sessions, a.Users, codec, clk, metrics, cfg.RefreshTTL(), cfg.RequireMatchingFingerprint)

	notifiers := map[string]verification.Notifier{
		domain.ChannelSMS:   smsNotifier(cfg, logger),
		domain.ChannelEmail: emailNotifier(cfg, logger),
	}
	a.Verification = verification.NewService(codeStore, notifiers, clk, metrics, verification.Config{
		CodeLength:     cfg.CodeLength,
		CodeTTL:        cfg.CodeTTL(),
		MaxAttempts:    cfg.VerificationMaxAttempts,
		ResendCooldown: cfg.ResendCooldown(),
		VerifiedTTL:    cfg.VerifiedTTL(),
	})

	a.Auth = auth.NewService(a.Users, security.NewHasher(cfg.BcryptCost), a.Tokens, a.Verification, clk)
	return a, nil
}

// Close releases store connections in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func smsNotifier(cfg *config.Config, logger *slog.Logger) verification.Notifier {
	if cfg.SMSAPIKey != "" {
		return notification.NewSMSNotifier(cfg.SMSAPIKey, cfg.SMSBaseURL, cfg.SMSSender)
	}
	return &notification.MockNotifier{Channel: domain.ChannelSMS, Logger: logger}
}

func emailNotifier(cfg *config.Config, logger *slog.Logger) verification.Notifier {
	if cfg.SMTPHost != "" {
		return notification.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	return &notification.MockNotifier{Channel: domain.ChannelEmail, Logger: logger}
}
