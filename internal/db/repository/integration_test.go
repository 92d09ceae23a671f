//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loop-dev/loop-battle/db/migrations"
	"github.com/loop-dev/loop-battle/internal/battle"
	"github.com/loop-dev/loop-battle/internal/db/queries"
	"github.com/loop-dev/loop-battle/internal/match"
	"github.com/loop-dev/loop-battle/internal/problem"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			Env:          map[string]string{"POSTGRES_USER": "battle", "POSTGRES_PASSWORD": "battlepass", "POSTGRES_DB": "battle"},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://battle:battlepass@%s:%s/battle?sslmode=disable", host, port.Port())

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "."))
	return dsn
}

func TestRepositories_Postgres(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	q := queries.New(pool)

	problems := NewProblemRepository(q)
	quizID, err := problems.Upsert(ctx, battle.Problem{
		Title: "zero value of a map", Subject: "go",
		Body: battle.MultipleChoice{Options: []string{"empty map", "nil"}, CorrectIndex: 1},
	})
	require.NoError(t, err)
	listed, err := problems.ListProblems(ctx, problem.Filter{Subject: "go", Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	rooms := NewRoomRepository(q)
	now := time.Now().UTC().Truncate(time.Microsecond)
	host := battle.Player{ID: uuid.New(), Nickname: "ada", Grade: "A0"}
	guest := battle.Player{ID: uuid.New(), Nickname: "bob"}
	rm := battle.Room{
		ID: uuid.New(), Title: "pg", Mode: battle.ModeMiniQuiz, Status: battle.RoomStatusWaiting,
		Host: host, ProblemIDs: []int64{quizID}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, rooms.InsertRoom(ctx, rm))
	rm.Guest = &guest
	rm.Status = battle.RoomStatusInProgress
	rm.StartedAt = &now
	require.NoError(t, rooms.UpdateRoom(ctx, rm))

	loaded, err := rooms.LoadRooms(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, guest.ID, loaded[0].Guest.ID)

	matches := NewMatchRepository(q)
	require.NoError(t, matches.CreateMatch(ctx, match.MatchRecord{
		RoomID: rm.ID, Mode: rm.Mode, StartedAt: now, Duration: 10 * time.Minute, ProblemIDs: rm.ProblemIDs,
		Players: []match.PlayerRecord{{PlayerID: host.ID}, {PlayerID: guest.ID}},
	}))
	one := 1
	require.NoError(t, matches.SaveAnswer(ctx, rm.ID, host.ID, quizID, battle.Answer{Choice: &one}))
	require.NoError(t, matches.SaveSubmission(ctx, rm.ID, host.ID, match.Submission{Finalized: true, Trigger: match.TriggerUser, AccuracyPercent: 100}))
	require.NoError(t, matches.SaveSubmission(ctx, rm.ID, host.ID, match.Submission{Finalized: true, Trigger: match.TriggerReported, AccuracyPercent: 0}))
	require.NoError(t, matches.SaveResult(ctx, rm.ID, host.ID, match.Result{AccuracyPercent: 100, RemainingTimePercent: 70}))

	active, err := matches.ListActiveMatches(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Len(t, active[0].Players, 2)
	assert.Equal(t, host.ID, active[0].Players[0].PlayerID)
	assert.Equal(t, 1, *active[0].Players[0].Answers[quizID].Choice)
	require.NotNil(t, active[0].Players[0].Submission)
	assert.Equal(t, 100, active[0].Players[0].Submission.AccuracyPercent, "first sealed submission is kept")

	_, err = matches.LoadResult(ctx, rm.ID)
	assert.ErrorIs(t, err, battle.ErrNotFound)

	done := now.Add(time.Minute)
	snap := match.Snapshot{
		RoomID: rm.ID, Players: [2]uuid.UUID{host.ID, guest.ID}, Phase: match.PhaseComplete,
		Resolution: match.ResolutionForfeit, CompletedAt: &done,
		Results:  map[uuid.UUID]match.Result{host.ID: {AccuracyPercent: 100, RemainingTimePercent: 70}},
		Outcomes: map[uuid.UUID]battle.Outcome{host.ID: battle.OutcomeWin, guest.ID: battle.OutcomeLose},
	}
	require.NoError(t, matches.CompleteMatch(ctx, snap))

	got, err := matches.LoadResult(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeLose, got.Outcomes[guest.ID])

	active, err = matches.ListActiveMatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
