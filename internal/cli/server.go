package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/battle"
	"exam-prep-service/internal/config"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/generator"
	"exam-prep-service/internal/handoff"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/infra/postgres"
	"exam-prep-service/internal/infra/rabbitmq"
	redisstore "exam-prep-service/internal/infra/redis"
	transport "exam-prep-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	bundle, err := memory.LoadBundle()
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	deps := app.Deps{
		Papers:  memory.NewPaperStore(bundle.Papers),
		Catalog: bundle.Catalog,
	}

	var loader memory.PoolLoader = memory.NewStaticBank(bundle.Questions)
	var harvester exam.Harvester
	if pool != nil {
		questionBank := postgres.NewQuestionBank(pool)
		results := postgres.NewResultStore(pool)
		bookmarks := postgres.NewBookmarkStore(pool)
		loader = questionBank
		harvester = questionBank
		deps.Results, deps.History = results, results
		deps.Bookmarks, deps.Library = bookmarks, bookmarks
	} else {
		results := memory.NewResultStore()
		bookmarks := memory.NewBookmarkStore()
		deps.Results, deps.History = results, results
		deps.Bookmarks, deps.Library = bookmarks, bookmarks
	}

	publisher, err := rabbitmq.NewPublisher(cfg.Harvest.AMQPURL, cfg.Harvest.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if publisher.Enabled() {
		harvester = publisher
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	handoffTTL := config.TTLDuration(cfg.Exam.HandoffTTL, 10*time.Minute)
	var rooms battle.RoomRepository
	if redisClient != nil {
		bank := redisstore.NewBankCache(redisClient, loader, bankTTL)
		deps.Bank = bank
		deps.Sessions = redisstore.NewExamStore(redisClient, redisTTL)
		deps.Handoff = handoff.NewMailboxes(redisstore.NewHandoffStore(redisClient), handoffTTL)
		rooms = redisstore.NewRoomStore(redisClient, redisTTL)
	} else {
		deps.Bank = memory.NewBankCache(loader, bankTTL)
		deps.Sessions = memory.NewExamStore()
		deps.Handoff = handoff.NewMailboxes(memory.NewHandoffStore(), handoffTTL)
		rooms = memory.NewRoomStore()
	}

	ai, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	source := exam.NewSource(deps.Bank, ai, harvester)
	deps.Source = source

	exams := app.NewExamService(deps,
		app.WithSessionOptions(exam.WithTickInterval(config.TTLDuration(cfg.Exam.TickInterval, time.Second))),
		app.WithIdleTTL(config.TTLDuration(cfg.Exam.IdleTTL, app.DefaultIdleTTL)),
		app.WithMistakeWindow(cfg.Exam.MistakeWindow),
	)
	battles := battle.NewService(rooms, source, battle.WithPerQuestionSeconds(cfg.Battle.PerQuestionSeconds))

	router := transport.NewRouter(
		transport.RouterConfig{JWTSecret: cfg.Auth.JWTSecret, CORSOrigins: cfg.Server.CORSOrigins},
		transport.NewExamHandler(exams),
		transport.NewBattleHandler(battles),
		transport.NewWSHandler(battles),
	)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go exams.RunJanitor(janitorCtx, config.TTLDuration(cfg.Exam.JanitorEvery, time.Minute))

	// Launch waits and websockets outlive a short write timeout.
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGenerator returns the AI fallback for the configured provider, or nil
// when AI generation is disabled.
func newGenerator(cfg config.Config) (exam.AIGenerator, error) {
	var llm generator.LLMClient
	switch cfg.AI.Provider {
	case "":
		log.Println("[ai] provider not configured, AI fallback disabled")
		return nil, nil
	case "mock":
		llm = generator.NewMockClient()
	case "anthropic":
		if cfg.AI.APIKey == "" {
			return nil, fmt.Errorf("ai provider anthropic needs ANTHROPIC_API_KEY")
		}
		llm = generator.NewAPIClient(cfg.AI.APIKey, cfg.AI.Model)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
	log.Printf("[ai] using %s provider", cfg.AI.Provider)
	return generator.New(llm, cfg.AI.Temperature), nil
}
