package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"escape-room-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AuditLog keeps attempts newest first in LPUSH escape:{ns}:attempts. A positive
// maxLen caps the list; zero keeps every attempt.
type AuditLog struct {
	client *redis.Client
	key    string
	maxLen int64
}

func NewAuditLog(client *redis.Client, namespace string, maxLen int64) *AuditLog {
	if maxLen < 0 {
		maxLen = 0
	}
	return &AuditLog{client: client, key: newKeys(namespace).attempts, maxLen: maxLen}
}

func (l *AuditLog) Append(ctx context.Context, attempt domain.AnswerAttempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	if l.maxLen == 0 {
		return l.client.LPush(ctx, l.key, raw).Err()
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, l.key, raw)
	pipe.LTrim(ctx, l.key, 0, l.maxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *AuditLog) Recent(ctx context.Context, limit int) ([]domain.AnswerAttempt, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := l.client.LRange(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AnswerAttempt, 0, len(raws))
	for _, raw := range raws {
		var attempt domain.AnswerAttempt
		if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, attempt)
	}
	return out, nil
}
