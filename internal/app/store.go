package app

import (
	"context"

	"escape-room-service/internal/domain"
)

// Store abstracts the document store of one event namespace (in-memory, Redis, Postgres).
type Store interface {
	Question(ctx context.Context, id string) (domain.Question, error)
	Answer(ctx context.Context, questionID string) (domain.AnswerKey, error)
	Team(ctx context.Context, teamID string) (domain.TeamRecord, error)
	Teams(ctx context.Context) ([]domain.TeamRecord, error)
	Config(ctx context.Context) (domain.GameConfig, error)

	// Update runs fn as one atomic batch: either every write fn made is applied
	// or none is. Returning an error from fn discards the batch. Implementations
	// may call fn more than once on contention, so fn must not have side effects
	// outside tx.
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the read/write view handed to Store.Update. Reads must happen before
// writes to the same document; a Tx does not promise read-your-writes.
type Tx interface {
	Config() (domain.GameConfig, error)
	Team(teamID string) (domain.TeamRecord, error)
	Teams() ([]domain.TeamRecord, error)

	PutConfig(cfg domain.GameConfig) error
	PutTeam(team domain.TeamRecord) error
	DeleteTeam(teamID string) error
	PutQuestion(q domain.Question) error
	PutAnswer(a domain.AnswerKey) error
}

// QuestionReader serves public question content, usually through a cache.
type QuestionReader interface {
	Question(ctx context.Context, id string) (domain.Question, error)
}

// AuditLog is the append-only record of validation attempts.
type AuditLog interface {
	Append(ctx context.Context, attempt domain.AnswerAttempt) error
	// Recent returns up to limit attempts, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AnswerAttempt, error)
}

type purger interface {
	Purge()
}
