package memory

import (
	"context"
	"sync"

	"escape-room-service/internal/domain"
)

// AuditLog keeps validation attempts in process memory.
type AuditLog struct {
	mu       sync.Mutex
	attempts []domain.AnswerAttempt
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(_ context.Context, attempt domain.AnswerAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, attempt)
	return nil
}

func (l *AuditLog) Recent(_ context.Context, limit int) ([]domain.AnswerAttempt, error) {
	if limit <= 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.AnswerAttempt, 0, min(limit, len(l.attempts)))
	for i := len(l.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.attempts[i])
	}
	return out, nil
}
