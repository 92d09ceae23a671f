package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const problemColumns = `problem_id, title, prompt, subject, kind, options, correct_index, created_at`

func scanProblems(rows pgx.Rows) ([]Problem, error) {
	defer rows.Close()
	var items []Problem
	for rows.Next() {
		var i Problem
		if err := rows.Scan(
			&i.ProblemID,
			&i.Title,
			&i.Prompt,
			&i.Subject,
			&i.Kind,
			&i.Options,
			&i.CorrectIndex,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getProblemsByIDs = `
SELECT ` + problemColumns + `
FROM problems
WHERE problem_id = ANY($1::bigint[])`

func (q *Queries) GetProblemsByIDs(ctx context.Context, ids []int64) ([]Problem, error) {
	rows, err := q.db.Query(ctx, getProblemsByIDs, ids)
	if err != nil {
		return nil, err
	}
	return scanProblems(rows)
}

const listProblems = `
SELECT ` + problemColumns + `
FROM problems
WHERE ($1::text IS NULL OR subject = $1)
  AND ($2::text IS NULL OR kind = $2)
ORDER BY problem_id
LIMIT $3`

type ListProblemsParams struct {
	Subject pgtype.Text
	Kind    pgtype.Text
	Limit   int32
}

func (q *Queries) ListProblems(ctx context.Context, arg ListProblemsParams) ([]Problem, error) {
	rows, err := q.db.Query(ctx, listProblems, arg.Subject, arg.Kind, arg.Limit)
	if err != nil {
		return nil, err
	}
	return scanProblems(rows)
}

const listProblemSubjects = `
SELECT DISTINCT subject
FROM problems
WHERE subject <> ''
ORDER BY subject`

func (q *Queries) ListProblemSubjects(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listProblemSubjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var subject string
		if err := rows.Scan(&subject); err != nil {
			return nil, err
		}
		items = append(items, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertProblem = `
INSERT INTO problems (title, prompt, subject, kind, options, correct_index)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (title, subject) DO UPDATE
SET prompt = EXCLUDED.prompt,
    kind = EXCLUDED.kind,
    options = EXCLUDED.options,
    correct_index = EXCLUDED.correct_index
RETURNING problem_id`

type UpsertProblemParams struct {
	Title        string
	Prompt       string
	Subject      string
	Kind         string
	Options      []byte
	CorrectIndex pgtype.Int4
}

func (q *Queries) UpsertProblem(ctx context.Context, arg UpsertProblemParams) (int64, error) {
	row := q.db.QueryRow(ctx, upsertProblem,
		arg.Title,
		arg.Prompt,
		arg.Subject,
		arg.Kind,
		arg.Options,
		arg.CorrectIndex,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}
