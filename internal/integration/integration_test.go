package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/infra/memory"
	"escape-room-service/internal/infra/postgres"
	infraredis "escape-room-service/internal/infra/redis"
	"escape-room-service/internal/infra/storetest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

const questionFile = `[
	{"id": "1a", "title": "Ohm", "prompt": "<p>V = I * ?</p>", "correctAnswer": "R", "nextQuestionId": "1b"},
	{"id": "1b", "title": "Capital", "prompt": "<p>Capital of France?</p>", "correctAnswer": "Paris"}
]`

var (
	admin = domain.Caller{Subject: "game-master", Admin: true}
	alice = domain.Caller{Subject: "team-alice"}
	bob   = domain.Caller{Subject: "team-bob"}
)

func TestPostgresBackend(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := migratedDB(t, ctx, pgURL)
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	// every store gets its own namespace, so subtests share one database
	storetest.RunStore(t, func(t *testing.T) app.Store {
		return postgres.NewStore(db, uuid.NewString())
	})
	storetest.RunAuditLog(t, postgres.NewAuditLog(pool, uuid.NewString()))

	ns := uuid.NewString()
	store := postgres.NewStore(db, ns)
	playGame(t, ctx, app.NewGameService(store, postgres.NewAuditLog(pool, ns),
		app.WithQuestionReader(memory.NewQuestionCache(store, time.Minute))))
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	storetest.RunStore(t, func(t *testing.T) app.Store {
		return infraredis.NewStore(client, uuid.NewString())
	})
	storetest.RunAuditLog(t, infraredis.NewAuditLog(client, uuid.NewString(), 0))

	ns := uuid.NewString()
	store := infraredis.NewStore(client, ns)
	playGame(t, ctx, app.NewGameService(store, infraredis.NewAuditLog(client, ns, 0),
		app.WithQuestionReader(memory.NewQuestionCache(store, time.Minute))))
}

// playGame runs a full event: upload, registration, start, answers, end and restart.
func playGame(t *testing.T, ctx context.Context, service *app.GameService) {
	t.Helper()
	if _, err := service.UploadQuestions(ctx, admin, strings.NewReader(questionFile)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	for _, c := range []domain.Caller{alice, bob} {
		if _, err := service.Register(ctx, c, strings.TrimPrefix(c.Subject, "team-")); err != nil {
			t.Fatalf("register %s: %v", c.Subject, err)
		}
	}
	if n, err := service.StartGame(ctx, admin); err != nil || n != 2 {
		t.Fatalf("start: n=%d err=%v", n, err)
	}

	answers := []struct {
		caller   domain.Caller
		question string
		answer   string
		success  bool
	}{
		{bob, "1a", "r", true},
		{bob, "1b", "PARIS ", true},
		{alice, "1a", "x", false},
		{alice, "1a", "R", true},
	}
	for _, a := range answers {
		res, err := service.Validate(ctx, a.caller, app.ValidationRequest{QuestionID: a.question, Answer: a.answer})
		if err != nil {
			t.Fatalf("validate %s %s: %v", a.caller.Subject, a.question, err)
		}
		if res.Success != a.success {
			t.Fatalf("validate %s %s: expected success=%v, got %+v", a.caller.Subject, a.question, a.success, res)
		}
	}

	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].TeamID != bob.Subject || !lb.Entries[0].Finished {
		t.Fatalf("expected bob finished first, got %+v", lb.Entries)
	}

	attempts, err := service.Attempts(ctx, admin, 10)
	if err != nil || len(attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %d (%v)", len(attempts), err)
	}

	if err := service.EndGame(ctx, admin); err != nil {
		t.Fatalf("end: %v", err)
	}
	if n, err := service.RestartGame(ctx, admin); err != nil || n != 2 {
		t.Fatalf("restart: n=%d err=%v", n, err)
	}
	cfg, err := service.Config(ctx)
	if err != nil || cfg.Status != domain.StatusWaiting || cfg.TotalQuestions != 2 {
		t.Fatalf("expected WAITING after restart, got %+v (%v)", cfg, err)
	}
}

func migratedDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	db := postgres.Open(dsn)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "escape", "POSTGRES_PASSWORD": "escapepass", "POSTGRES_DB": "escapedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://escape:escapepass@%s:%s/escapedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
