package postgres

import (
	"context"
	"fmt"

	"escape-room-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AuditLog appends validation attempts to answer_attempts through pgx.
type AuditLog struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewAuditLog(pool *pgxpool.Pool, namespace string) *AuditLog {
	return &AuditLog{pool: pool, namespace: namespace}
}

func (l *AuditLog) Append(ctx context.Context, attempt domain.AnswerAttempt) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO answer_attempts (id, namespace, team_id, question_id, submitted_answer, correct, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.ID, l.namespace, attempt.TeamID, attempt.QuestionID, attempt.SubmittedAnswer, attempt.Correct, attempt.Timestamp)
	if err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (l *AuditLog) Recent(ctx context.Context, limit int) ([]domain.AnswerAttempt, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, team_id, question_id, submitted_answer, correct, created_at
		 FROM answer_attempts WHERE namespace = $1 ORDER BY seq DESC LIMIT $2`,
		l.namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.AnswerAttempt
	for rows.Next() {
		var a domain.AnswerAttempt
		if err := rows.Scan(&a.ID, &a.TeamID, &a.QuestionID, &a.SubmittedAnswer, &a.Correct, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
