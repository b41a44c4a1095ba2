package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/handoff"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/infra/postgres"
	pgmigrations "exam-prep-service/internal/infra/postgres/migrations"
	infraredis "exam-prep-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuestionBankEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	bundle, err := memory.LoadBundle()
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	bank := postgres.NewQuestionBank(pool)
	inserted, err := bank.Insert(ctx, domain.HarvestBatch{Questions: bundle.Questions})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if int(inserted) != len(bundle.Questions) {
		t.Fatalf("expected %d rows, inserted %d", len(bundle.Questions), inserted)
	}
	again, err := bank.Insert(ctx, domain.HarvestBatch{Questions: bundle.Questions})
	if err != nil || again != 0 {
		t.Fatalf("re-seeding should skip duplicates, inserted %d err %v", again, err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()
	cache := infraredis.NewBankCache(redisClient, bank, 5*time.Minute)

	req := domain.BankRequest{Subject: "Physics", Chapter: "Vectors", Topics: []string{"Addition"}, Count: 10}
	qs, err := cache.FromBank(ctx, req)
	if err != nil {
		t.Fatalf("from bank: %v", err)
	}
	if len(qs) == 0 {
		t.Fatalf("expected bundled Addition questions")
	}
	for _, q := range qs {
		if q.Topic != "Addition" || q.ID == "" {
			t.Fatalf("unexpected question from bank: %+v", q)
		}
	}
	cached, err := cache.FromBank(ctx, req)
	if err != nil || len(cached) != len(qs) {
		t.Fatalf("cached read: %d %v", len(cached), err)
	}
}

func TestResultsAndBookmarksEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	opts := []string{"a", "b", "c", "d"}
	wrong := domain.Question{ID: "q-1", Question: "1?", Options: opts, CorrectAnswerIndex: 1, Topic: "Optics"}
	results := postgres.NewResultStore(pool)
	err = results.SaveResult(ctx, domain.ExamResult{
		UserID:         "u1",
		Subject:        "Physics",
		TotalQuestions: 2,
		Correct:        1,
		Wrong:          1,
		Score:          0.75,
		TopicStats:     []domain.TopicStat{{Topic: "Optics", Correct: 1, Total: 2}},
		Mistakes:       []domain.Question{wrong},
	})
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
	mistakes, err := results.RecentMistakes(ctx, "u1", 10)
	if err != nil || len(mistakes) != 1 || mistakes[0].ID != "q-1" {
		t.Fatalf("recent mistakes: %+v %v", mistakes, err)
	}

	bookmarks := postgres.NewBookmarkStore(pool)
	if err := bookmarks.SaveBookmark(ctx, "u1", wrong); err != nil {
		t.Fatalf("save bookmark: %v", err)
	}
	if err := bookmarks.SaveBookmark(ctx, "u1", wrong); err != nil {
		t.Fatalf("bookmarking twice should upsert: %v", err)
	}
	list, err := bookmarks.ListBookmarks(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list bookmarks: %+v %v", list, err)
	}
	if err := bookmarks.RemoveBookmark(ctx, "u1", "q-1"); err != nil {
		t.Fatalf("remove bookmark: %v", err)
	}
	if list, _ := bookmarks.ListBookmarks(ctx, "u1"); len(list) != 0 {
		t.Fatalf("expected no bookmarks, got %+v", list)
	}
}

func TestRedisHandoffEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, cleanup := startRedis(t, ctx)
	defer cleanup()
	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	boxes := handoff.NewMailboxes(infraredis.NewHandoffStore(client), time.Minute)
	if err := boxes.Launch.Send(ctx, "u1", domain.LaunchRequest{Mode: domain.ModePreset, Preset: "Medical Admission"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := boxes.Launch.Receive(ctx, "u1")
	if err != nil || got.Preset != "Medical Admission" {
		t.Fatalf("receive: %+v %v", got, err)
	}
	if _, err := boxes.Launch.Receive(ctx, "u1"); !errors.Is(err, domain.ErrHandoffEmpty) {
		t.Fatalf("expected the message to be consumed, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "exam", "POSTGRES_PASSWORD": "exampass", "POSTGRES_DB": "examdb"},
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
	dsn := fmt.Sprintf("postgres://exam:exampass@%s:%s/examdb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
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
