package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/config"
	"github.com/loop-dev/loop-battle/internal/db/queries"
	"github.com/loop-dev/loop-battle/internal/db/repository"
)

type seedFile struct {
	Problems []seedProblem `yaml:"problems"`
}

type seedProblem struct {
	Title   string   `yaml:"title"`
	Prompt  string   `yaml:"prompt"`
	Subject string   `yaml:"subject"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options"`
	Answer  *int     `yaml:"answer"`
}

// parseSeed decodes and validates the whole file before anything is written.
func parseSeed(r io.Reader) ([]battle.Problem, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	out := make([]battle.Problem, 0, len(f.Problems))
	for i, p := range f.Problems {
		if p.Title == "" {
			return nil, fmt.Errorf("problem #%d: title is required", i+1)
		}
		body, err := battle.NewProblemBody(battle.ProblemKind(p.Type), p.Options, p.Answer)
		if err != nil {
			return nil, fmt.Errorf("problem %q: %w", p.Title, err)
		}
		out = append(out, battle.Problem{Title: p.Title, Prompt: p.Prompt, Subject: p.Subject, Body: body})
	}
	return out, nil
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the problem bank from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fh, err := os.Open(file)
			if err != nil {
				return err
			}
			defer fh.Close()
			problems, err := parseSeed(fh)
			if err != nil {
				return err
			}

			pg, err := config.LoadPostgres()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			conn, err := pgx.Connect(ctx, pg.DSN())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer conn.Close(ctx)

			tx, err := conn.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			repo := repository.NewProblemRepository(queries.New(conn).WithTx(tx))
			for _, p := range problems {
				id, err := repo.Upsert(ctx, p)
				if err != nil {
					return fmt.Errorf("upsert %q: %w", p.Title, err)
				}
				log.Debug().Int64("problem_id", id).Str("title", p.Title).Msg("problem seeded")
			}
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit seed: %w", err)
			}
			log.Info().Int("problems", len(problems)).Str("file", file).Msg("problem bank seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "db/seed/problems.yaml", "YAML file with the problem bank")
	return cmd
}
