package memory

import (
	"context"
	"sort"
	"sync"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Update holds the write
// lock for the whole batch and applies buffered writes only when fn succeeds.
type Store struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	answers   map[string]domain.AnswerKey
	teams     map[string]domain.TeamRecord
	config    *domain.GameConfig
}

func NewStore() *Store {
	return &Store{
		questions: make(map[string]domain.Question),
		answers:   make(map[string]domain.AnswerKey),
		teams:     make(map[string]domain.TeamRecord),
	}
}

func (s *Store) Question(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) Answer(_ context.Context, questionID string) (domain.AnswerKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[questionID]
	if !ok {
		return domain.AnswerKey{}, domain.ErrAnswerNotFound
	}
	return a, nil
}

func (s *Store) Team(_ context.Context, teamID string) (domain.TeamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamLocked(teamID)
}

func (s *Store) Teams(_ context.Context) ([]domain.TeamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamsLocked(), nil
}

func (s *Store) Config(_ context.Context) (domain.GameConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configLocked(), nil
}

func (s *Store) Update(ctx context.Context, fn func(tx app.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op()
	}
	return nil
}

func (s *Store) teamLocked(teamID string) (domain.TeamRecord, error) {
	team, ok := s.teams[teamID]
	if !ok {
		return domain.TeamRecord{}, domain.ErrTeamNotFound
	}
	return team.Clone(), nil
}

func (s *Store) teamsLocked() []domain.TeamRecord {
	teams := make([]domain.TeamRecord, 0, len(s.teams))
	for _, team := range s.teams {
		teams = append(teams, team.Clone())
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].TeamID < teams[j].TeamID })
	return teams
}

func (s *Store) configLocked() domain.GameConfig {
	if s.config == nil {
		return domain.DefaultGameConfig()
	}
	return *s.config
}

// memTx reads committed state and queues writes until fn returns.
type memTx struct {
	store *Store
	ops   []func()
}

func (t *memTx) Config() (domain.GameConfig, error) {
	return t.store.configLocked(), nil
}

func (t *memTx) Team(teamID string) (domain.TeamRecord, error) {
	return t.store.teamLocked(teamID)
}

func (t *memTx) Teams() ([]domain.TeamRecord, error) {
	return t.store.teamsLocked(), nil
}

func (t *memTx) PutConfig(cfg domain.GameConfig) error {
	t.ops = append(t.ops, func() { t.store.config = &cfg })
	return nil
}

func (t *memTx) PutTeam(team domain.TeamRecord) error {
	team = team.Clone()
	t.ops = append(t.ops, func() { t.store.teams[team.TeamID] = team })
	return nil
}

func (t *memTx) DeleteTeam(teamID string) error {
	t.ops = append(t.ops, func() { delete(t.store.teams, teamID) })
	return nil
}

func (t *memTx) PutQuestion(q domain.Question) error {
	t.ops = append(t.ops, func() { t.store.questions[q.ID] = q })
	return nil
}

func (t *memTx) PutAnswer(a domain.AnswerKey) error {
	t.ops = append(t.ops, func() { t.store.answers[a.QuestionID] = a })
	return nil
}
