package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"lms-test-service/internal/config"
	pgmigrations "lms-test-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return migrateDB(ctx, b, log.Default())
}

func migrateDB(ctx context.Context, b *backends, logger *log.Logger) error {
	group, err := pgmigrations.Apply(ctx, b.db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Printf("migrations: nothing to apply")
		return nil
	}
	logger.Printf("migrations applied: %s", group)
	return nil
}
