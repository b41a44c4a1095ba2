package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"exam-prep-service/internal/config"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/infra/postgres"
	pgmigrations "exam-prep-service/internal/infra/postgres/migrations"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations and optionally seeds the bank.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			if seed {
				return seedBank(cmd.Context(), cfg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert the bundled questions into the question bank")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Printf("[migrate] database is up to date")
		return nil
	}
	log.Printf("[migrate] applied %s", group)
	return nil
}

// seedBank copies the bundled questions into Postgres. Existing rows are kept.
func seedBank(ctx context.Context, cfg config.Config) error {
	bundle, err := memory.LoadBundle()
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	inserted, err := postgres.NewQuestionBank(pool).Insert(ctx, domain.HarvestBatch{Questions: bundle.Questions})
	if err != nil {
		return err
	}
	log.Printf("[migrate] seeded %d of %d bundled questions", inserted, len(bundle.Questions))
	return nil
}
