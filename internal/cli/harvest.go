package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"exam-prep-service/internal/config"
	"exam-prep-service/internal/infra/postgres"
	"exam-prep-service/internal/infra/rabbitmq"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewHarvestCmd consumes AI-generated batches from the broker into the question bank.
func NewHarvestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Store harvested AI questions from RabbitMQ into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runHarvester(cmd.Context(), cfg)
		},
	}
}

func runHarvester(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	consumer, err := rabbitmq.NewConsumer(cfg.Harvest.AMQPURL, cfg.Harvest.Exchange, cfg.Harvest.Queue, postgres.NewQuestionBank(pool))
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Println("[harvest] stopped")
	return nil
}
