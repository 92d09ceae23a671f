package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/db/queries"
	"github.com/loop-dev/loop-battle/internal/problem"
)

type problemStore interface {
	GetProblemsByIDs(ctx context.Context, ids []int64) ([]queries.Problem, error)
	ListProblems(ctx context.Context, arg queries.ListProblemsParams) ([]queries.Problem, error)
	ListProblemSubjects(ctx context.Context) ([]string, error)
	UpsertProblem(ctx context.Context, arg queries.UpsertProblemParams) (int64, error)
}

// ProblemRepository reads and seeds the problem bank.
type ProblemRepository struct {
	store problemStore
}

func NewProblemRepository(store problemStore) *ProblemRepository {
	return &ProblemRepository{store: store}
}

// GetProblems returns the rows found for ids, in no particular order.
func (r *ProblemRepository) GetProblems(ctx context.Context, ids []int64) ([]battle.Problem, error) {
	rows, err := r.store.GetProblemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return problemsFromRows(rows)
}

// ListProblems applies the bank filter.
func (r *ProblemRepository) ListProblems(ctx context.Context, f problem.Filter) ([]battle.Problem, error) {
	params := queries.ListProblemsParams{Limit: int32(f.Limit)}
	if f.Subject != "" {
		params.Subject = pgtype.Text{String: f.Subject, Valid: true}
	}
	if f.Kind != "" {
		params.Kind = pgtype.Text{String: string(f.Kind), Valid: true}
	}
	rows, err := r.store.ListProblems(ctx, params)
	if err != nil {
		return nil, err
	}
	return problemsFromRows(rows)
}

// ListSubjects returns the distinct subjects in the bank, sorted.
func (r *ProblemRepository) ListSubjects(ctx context.Context) ([]string, error) {
	subjects, err := r.store.ListProblemSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// Upsert inserts or refreshes a problem keyed by (title, subject) and returns its id.
func (r *ProblemRepository) Upsert(ctx context.Context, p battle.Problem) (int64, error) {
	params := queries.UpsertProblemParams{
		Title:   p.Title,
		Prompt:  p.Prompt,
		Subject: p.Subject,
		Options: []byte("[]"),
	}
	switch b := p.Body.(type) {
	case battle.MultipleChoice:
		opts, err := json.Marshal(b.Options)
		if err != nil {
			return 0, err
		}
		params.Kind = string(battle.KindMultipleChoice)
		params.Options = opts
		params.CorrectIndex = pgtype.Int4{Int32: int32(b.CorrectIndex), Valid: true}
	case battle.Subjective:
		params.Kind = string(battle.KindSubjective)
	default:
		return 0, fmt.Errorf("problem %q: unsupported body %T", p.Title, p.Body)
	}
	return r.store.UpsertProblem(ctx, params)
}

func problemsFromRows(rows []queries.Problem) ([]battle.Problem, error) {
	out := make([]battle.Problem, 0, len(rows))
	for _, row := range rows {
		var options []string
		if len(row.Options) > 0 {
			if err := json.Unmarshal(row.Options, &options); err != nil {
				return nil, fmt.Errorf("problem %d options: %w", row.ProblemID, err)
			}
		}
		var correct *int
		if row.CorrectIndex.Valid {
			idx := int(row.CorrectIndex.Int32)
			correct = &idx
		}
		body, err := battle.NewProblemBody(battle.ProblemKind(row.Kind), options, correct)
		if err != nil {
			return nil, fmt.Errorf("problem %d: %w", row.ProblemID, err)
		}
		out = append(out, battle.Problem{
			ID:      row.ProblemID,
			Title:   row.Title,
			Prompt:  row.Prompt,
			Subject: row.Subject,
			Body:    body,
		})
	}
	return out, nil
}
