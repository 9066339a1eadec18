package postgres

import (
	"context"
	"database/sql"
	"errors"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"github.com/uptrace/bun"
)

// Store keeps one event namespace in Postgres. Every Update takes a
// transaction-scoped advisory lock on the namespace, so batches of the same
// event run one at a time.
type Store struct {
	db        *bun.DB
	namespace string
}

func NewStore(db *bun.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

func (s *Store) Question(ctx context.Context, id string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).
		Where("namespace = ? AND id = ?", s.namespace, id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) Answer(ctx context.Context, questionID string) (domain.AnswerKey, error) {
	var row answerRow
	err := s.db.NewSelect().Model(&row).
		Where("namespace = ? AND question_id = ?", s.namespace, questionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnswerKey{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return domain.AnswerKey{QuestionID: row.QuestionID, CorrectAnswer: row.CorrectAnswer}, nil
}

func (s *Store) Team(ctx context.Context, teamID string) (domain.TeamRecord, error) {
	return selectTeam(ctx, s.db, s.namespace, teamID)
}

func (s *Store) Teams(ctx context.Context) ([]domain.TeamRecord, error) {
	return selectTeams(ctx, s.db, s.namespace)
}

func (s *Store) Config(ctx context.Context) (domain.GameConfig, error) {
	return selectConfig(ctx, s.db, s.namespace)
}

func (s *Store) Update(ctx context.Context, fn func(tx app.Tx) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", "escape:"+s.namespace); err != nil {
			return err
		}
		return fn(&storeTx{ctx: ctx, tx: tx, namespace: s.namespace})
	})
}

type storeTx struct {
	ctx       context.Context
	tx        bun.Tx
	namespace string
}

func (t *storeTx) Config() (domain.GameConfig, error) {
	return selectConfig(t.ctx, t.tx, t.namespace)
}

func (t *storeTx) Team(teamID string) (domain.TeamRecord, error) {
	return selectTeam(t.ctx, t.tx, t.namespace, teamID)
}

func (t *storeTx) Teams() ([]domain.TeamRecord, error) {
	return selectTeams(t.ctx, t.tx, t.namespace)
}

func (t *storeTx) PutConfig(cfg domain.GameConfig) error {
	row := configRow{
		Namespace:       t.namespace,
		Status:          string(cfg.Status),
		TotalQuestions:  cfg.TotalQuestions,
		FirstQuestionID: cfg.FirstQuestionID,
		UpdatedAt:       cfg.UpdatedAt,
	}
	_, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (namespace) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("total_questions = EXCLUDED.total_questions").
		Set("first_question_id = EXCLUDED.first_question_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(t.ctx)
	return err
}

func (t *storeTx) PutTeam(team domain.TeamRecord) error {
	row := newTeamRow(t.namespace, team)
	_, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (namespace, team_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("current_question_id = EXCLUDED.current_question_id").
		Set("start_time = EXCLUDED.start_time").
		Set("end_time = EXCLUDED.end_time").
		Set("parts_solved = EXCLUDED.parts_solved").
		Set("score = EXCLUDED.score").
		Exec(t.ctx)
	return err
}

func (t *storeTx) DeleteTeam(teamID string) error {
	_, err := t.tx.NewDelete().Model((*teamRow)(nil)).
		Where("namespace = ? AND team_id = ?", t.namespace, teamID).
		Exec(t.ctx)
	return err
}

func (t *storeTx) PutQuestion(q domain.Question) error {
	row := questionRow{
		Namespace:      t.namespace,
		ID:             q.ID,
		Title:          q.Title,
		Prompt:         q.Prompt,
		NextQuestionID: q.NextQuestionID,
	}
	_, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (namespace, id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("prompt = EXCLUDED.prompt").
		Set("next_question_id = EXCLUDED.next_question_id").
		Exec(t.ctx)
	return err
}

func (t *storeTx) PutAnswer(a domain.AnswerKey) error {
	row := answerRow{Namespace: t.namespace, QuestionID: a.QuestionID, CorrectAnswer: a.CorrectAnswer}
	_, err := t.tx.NewInsert().Model(&row).
		On("CONFLICT (namespace, question_id) DO UPDATE").
		Set("correct_answer = EXCLUDED.correct_answer").
		Exec(t.ctx)
	return err
}

func selectTeam(ctx context.Context, db bun.IDB, namespace, teamID string) (domain.TeamRecord, error) {
	var row teamRow
	err := db.NewSelect().Model(&row).
		Where("namespace = ? AND team_id = ?", namespace, teamID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TeamRecord{}, domain.ErrTeamNotFound
	}
	if err != nil {
		return domain.TeamRecord{}, err
	}
	return row.toDomain(), nil
}

func selectTeams(ctx context.Context, db bun.IDB, namespace string) ([]domain.TeamRecord, error) {
	var rows []teamRow
	err := db.NewSelect().Model(&rows).
		Where("namespace = ?", namespace).
		Order("team_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	teams := make([]domain.TeamRecord, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.toDomain())
	}
	return teams, nil
}

func selectConfig(ctx context.Context, db bun.IDB, namespace string) (domain.GameConfig, error) {
	var row configRow
	err := db.NewSelect().Model(&row).
		Where("namespace = ?", namespace).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultGameConfig(), nil
	}
	if err != nil {
		return domain.GameConfig{}, err
	}
	return row.toDomain(), nil
}
