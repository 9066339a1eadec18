package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 32

// ErrContention is returned when optimistic transactions kept losing the race.
var ErrContention = errors.New("redis: too much contention")

// Store keeps one event namespace in Redis:
//
//	HSET escape:{ns}:questions {questionID} {question json}
//	HSET escape:{ns}:answers   {questionID} {correct answer}
//	HSET escape:{ns}:teams     {teamID}     {team json}
//	SET  escape:{ns}:config    {config json}
//
// Update runs under WATCH on every namespace key and commits with MULTI/EXEC.
type Store struct {
	client *redis.Client
	keys   keys
}

type keys struct {
	questions string
	answers   string
	teams     string
	config    string
	attempts  string
}

func newKeys(namespace string) keys {
	prefix := "escape:" + namespace + ":"
	return keys{
		questions: prefix + "questions",
		answers:   prefix + "answers",
		teams:     prefix + "teams",
		config:    prefix + "config",
		attempts:  prefix + "attempts",
	}
}

func NewStore(client *redis.Client, namespace string) *Store {
	return &Store{client: client, keys: newKeys(namespace)}
}

func (s *Store) Question(ctx context.Context, id string) (domain.Question, error) {
	return readQuestion(ctx, s.client, s.keys, id)
}

func (s *Store) Answer(ctx context.Context, questionID string) (domain.AnswerKey, error) {
	answer, err := s.client.HGet(ctx, s.keys.answers, questionID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.AnswerKey{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return domain.AnswerKey{QuestionID: questionID, CorrectAnswer: answer}, nil
}

func (s *Store) Team(ctx context.Context, teamID string) (domain.TeamRecord, error) {
	return readTeam(ctx, s.client, s.keys, teamID)
}

func (s *Store) Teams(ctx context.Context) ([]domain.TeamRecord, error) {
	return readTeams(ctx, s.client, s.keys)
}

func (s *Store) Config(ctx context.Context) (domain.GameConfig, error) {
	return readConfig(ctx, s.client, s.keys)
}

func (s *Store) Update(ctx context.Context, fn func(tx app.Tx) error) error {
	watched := []string{s.keys.questions, s.keys.answers, s.keys.teams, s.keys.config}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &storeTx{ctx: ctx, rtx: rtx, keys: s.keys}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.ops) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, op := range tx.ops {
					op(pipe)
				}
				return nil
			})
			return err
		}, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := backoff(ctx, attempt); err != nil {
			return err
		}
	}
	return ErrContention
}

func backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(rand.Int63n(int64(attempt+1)*int64(time.Millisecond) + 1))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reader is the read surface shared by *redis.Client and *redis.Tx.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// storeTx reads through the watching connection and queues writes for EXEC.
type storeTx struct {
	ctx  context.Context
	rtx  *redis.Tx
	keys keys
	ops  []func(pipe redis.Pipeliner)
}

func (t *storeTx) Config() (domain.GameConfig, error) {
	return readConfig(t.ctx, t.rtx, t.keys)
}

func (t *storeTx) Team(teamID string) (domain.TeamRecord, error) {
	return readTeam(t.ctx, t.rtx, t.keys, teamID)
}

func (t *storeTx) Teams() ([]domain.TeamRecord, error) {
	return readTeams(t.ctx, t.rtx, t.keys)
}

func (t *storeTx) PutConfig(cfg domain.GameConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.Set(t.ctx, t.keys.config, raw, 0) })
	return nil
}

func (t *storeTx) PutTeam(team domain.TeamRecord) error {
	raw, err := json.Marshal(team)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HSet(t.ctx, t.keys.teams, team.TeamID, raw) })
	return nil
}

func (t *storeTx) DeleteTeam(teamID string) error {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HDel(t.ctx, t.keys.teams, teamID) })
	return nil
}

func (t *storeTx) PutQuestion(q domain.Question) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HSet(t.ctx, t.keys.questions, q.ID, raw) })
	return nil
}

func (t *storeTx) PutAnswer(a domain.AnswerKey) error {
	t.ops = append(t.ops, func(pipe redis.Pipeliner) { pipe.HSet(t.ctx, t.keys.answers, a.QuestionID, a.CorrectAnswer) })
	return nil
}

func readQuestion(ctx context.Context, c reader, k keys, id string) (domain.Question, error) {
	raw, err := c.HGet(ctx, k.questions, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, err
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("decode question %s: %w", id, err)
	}
	return q, nil
}

func readTeam(ctx context.Context, c reader, k keys, teamID string) (domain.TeamRecord, error) {
	raw, err := c.HGet(ctx, k.teams, teamID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TeamRecord{}, domain.ErrTeamNotFound
	}
	if err != nil {
		return domain.TeamRecord{}, err
	}
	return decodeTeam(teamID, raw)
}

func readTeams(ctx context.Context, c reader, k keys) ([]domain.TeamRecord, error) {
	all, err := c.HGetAll(ctx, k.teams).Result()
	if err != nil {
		return nil, err
	}
	teams := make([]domain.TeamRecord, 0, len(all))
	for id, raw := range all {
		team, err := decodeTeam(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].TeamID < teams[j].TeamID })
	return teams, nil
}

func decodeTeam(teamID string, raw []byte) (domain.TeamRecord, error) {
	var team domain.TeamRecord
	if err := json.Unmarshal(raw, &team); err != nil {
		return domain.TeamRecord{}, fmt.Errorf("decode team %s: %w", teamID, err)
	}
	if team.PartsSolved == nil {
		team.PartsSolved = make(map[string]time.Time)
	}
	return team, nil
}

func readConfig(ctx context.Context, c reader, k keys) (domain.GameConfig, error) {
	raw, err := c.Get(ctx, k.config).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultGameConfig(), nil
	}
	if err != nil {
		return domain.GameConfig{}, err
	}
	var cfg domain.GameConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.GameConfig{}, fmt.Errorf("decode game config: %w", err)
	}
	return cfg, nil
}
