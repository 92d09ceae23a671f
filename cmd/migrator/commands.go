package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loop-dev/loop-battle/db/migrations"
	"github.com/loop-dev/loop-battle/internal/config"
)

func newRootCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:           "migrator",
		Short:         "Schema migrations and problem bank seeding for loop-battle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")

	cmd.AddCommand(
		gooseCmd("up", "Apply all pending migrations", &dir, goose.UpContext),
		gooseCmd("down", "Roll back the latest migration", &dir, goose.DownContext),
		gooseCmd("status", "Print migration status", &dir, goose.StatusContext),
		newSeedCmd(),
	)
	return cmd
}

type gooseFunc func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

func gooseCmd(use, short string, dir *string, run gooseFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			source := "."
			if *dir != "" {
				if _, err := os.Stat(*dir); err != nil {
					return fmt.Errorf("migration directory: %w", err)
				}
				goose.SetBaseFS(nil)
				source = *dir
			} else {
				goose.SetBaseFS(migrations.FS)
			}
			goose.SetTableName("goose_db_version")
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}

			if err := run(cmd.Context(), db, source); err != nil {
				return fmt.Errorf("goose %s: %w", use, err)
			}
			log.Info().Str("command", use).Msg("migration command finished")
			return nil
		},
	}
}

func openDB() (*sql.DB, error) {
	pg, err := config.LoadPostgres()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", pg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("host", pg.Host).Int("port", pg.Port).Str("database", pg.Database).Msg("connected to database")
	return db, nil
}
