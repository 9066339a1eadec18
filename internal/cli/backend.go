package cli

import (
	"context"
	"io"
	"log"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/auth"
	"escape-room-service/internal/config"
	"escape-room-service/internal/infra/memory"
	"escape-room-service/internal/infra/postgres"
	redisstore "escape-room-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backend is the storage wiring chosen from config: Postgres wins over Redis,
// and the in-memory store is the fallback.
type backend struct {
	store   app.Store
	audit   app.AuditLog
	closers []io.Closer
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			log.Printf("close backend: %v", err)
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{}
	ns := cfg.Game.Namespace

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, redisClient)
	}

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg); err != nil {
			b.Close()
			return nil, err
		}
		db := postgres.Open(cfg.Postgres.URL)
		b.closers = append(b.closers, db)
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, closerFunc(func() error { pool.Close(); return nil }))
		b.store = postgres.NewStore(db, ns)
		b.audit = postgres.NewAuditLog(pool, ns)
		log.Printf("using postgres store (namespace %s)", ns)
	case redisClient != nil:
		b.store = redisstore.NewStore(redisClient, ns)
		b.audit = redisstore.NewAuditLog(redisClient, ns, cfg.Redis.AttemptsMax)
		log.Printf("using redis store at %s (namespace %s)", cfg.Redis.Addr, ns)
	default:
		b.store = memory.NewStore()
		b.audit = memory.NewAuditLog()
		log.Printf("using in-memory store; state is lost on restart")
	}
	return b, nil
}

func newService(b *backend, cfg config.Config) *app.GameService {
	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	return app.NewGameService(b.store, b.audit,
		app.WithQuestionReader(memory.NewQuestionCache(b.store, cacheTTL)))
}

func newAuthenticator(cfg config.Config) (*auth.Authenticator, error) {
	return auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.AdminSubject, config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour))
}
