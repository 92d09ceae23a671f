package problem

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/loop-dev/loop-battle/internal/battle"
)

// Repository loads problems from durable storage.
type Repository interface {
	GetProblems(ctx context.Context, ids []int64) ([]battle.Problem, error)
	ListProblems(ctx context.Context, filter Filter) ([]battle.Problem, error)
	ListSubjects(ctx context.Context) ([]string, error)
}

// Filter narrows the problem bank listing.
type Filter struct {
	Subject string
	Kind    battle.ProblemKind
	Limit   int
}

// Service resolves problem ids for rooms and matches.
type Service struct {
	repo   Repository
	cache  SetCache
	sf     singleflight.Group
	logger zerolog.Logger
}

func NewService(repo Repository, cache SetCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger.With().Str("component", "problem_bank").Logger(),
	}
}

// GetByIDs returns problems in the requested order. A missing id is NotFound.
func (s *Service) GetByIDs(ctx context.Context, ids []int64) ([]battle.Problem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, ids); err != nil {
			s.logger.Warn().Err(err).Msg("problem cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	v, err, _ := s.sf.Do(setKey(ids), func() (interface{}, error) {
		found, err := s.repo.GetProblems(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load problems: %w", err)
		}
		byID := make(map[int64]battle.Problem, len(found))
		for _, p := range found {
			byID[p.ID] = p
		}
		ordered := make([]battle.Problem, 0, len(ids))
		for _, id := range ids {
			p, ok := byID[id]
			if !ok {
				return nil, battle.NotFound(fmt.Sprintf("problem %d not found", id))
			}
			ordered = append(ordered, p)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, ids, ordered); err != nil {
				s.logger.Warn().Err(err).Msg("problem cache write failed")
			}
		}
		return ordered, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]battle.Problem), nil
}

// List returns the bank for room creation screens.
func (s *Service) List(ctx context.Context, f Filter) ([]battle.Problem, error) {
	if f.Kind != "" && f.Kind != battle.KindSubjective && f.Kind != battle.KindMultipleChoice {
		return nil, battle.Validation("type", fmt.Sprintf("unknown problem type %q", f.Kind))
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 200
	}
	return s.repo.ListProblems(ctx, f)
}

// Get returns a single problem.
func (s *Service) Get(ctx context.Context, id int64) (battle.Problem, error) {
	found, err := s.GetByIDs(ctx, []int64{id})
	if err != nil {
		return battle.Problem{}, err
	}
	return found[0], nil
}

// Subjects lists the subjects present in the bank.
func (s *Service) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []string{}
	}
	return subjects, nil
}

func setKey(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
