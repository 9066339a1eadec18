package redis

import (
	"context"
	"testing"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"escape-room-service/internal/infra/storetest"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStore(t *testing.T) {
	storetest.RunStore(t, func(t *testing.T) app.Store {
		return NewStore(newClient(t, startMiniredis(t)), "test")
	})
}

func TestAuditLog(t *testing.T) {
	mr := startMiniredis(t)
	storetest.RunAuditLog(t, NewAuditLog(newClient(t, mr), "test", 0))
}

func TestAuditLogIsCapped(t *testing.T) {
	mr := startMiniredis(t)
	log := NewAuditLog(newClient(t, mr), "test", 2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := log.Append(ctx, domain.AnswerAttempt{ID: id}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	items, err := mr.List("escape:test:attempts")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected list trimmed to 2, got %d", len(items))
	}
}

func TestAuditLogKeepsEveryAttemptByDefault(t *testing.T) {
	mr := startMiniredis(t)
	log := NewAuditLog(newClient(t, mr), "test", 0)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := log.Append(ctx, domain.AnswerAttempt{ID: id}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	recent, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 5 || recent[0].ID != "e" || recent[4].ID != "a" {
		t.Fatalf("expected all 5 attempts newest first, got %+v", recent)
	}
}

func TestStoreUsesNamespacedKeys(t *testing.T) {
	mr := startMiniredis(t)
	client := newClient(t, mr)
	ctx := context.Background()

	a := NewStore(client, "event-a")
	b := NewStore(client, "event-b")
	err := a.Update(ctx, func(tx app.Tx) error {
		if err := tx.PutTeam(domain.NewTeamRecord("t1", "Sparks", "1a", time.Now())); err != nil {
			return err
		}
		return tx.PutConfig(domain.GameConfig{Status: domain.StatusStarted})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if !mr.Exists("escape:event-a:teams") || !mr.Exists("escape:event-a:config") {
		t.Fatalf("expected namespaced keys, got %v", mr.Keys())
	}
	if teams, err := b.Teams(ctx); err != nil || len(teams) != 0 {
		t.Fatalf("expected other namespace empty, got %v (%v)", teams, err)
	}
	if cfg, err := b.Config(ctx); err != nil || cfg.Status != domain.StatusWaiting {
		t.Fatalf("expected other namespace WAITING, got %+v (%v)", cfg, err)
	}
}

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func newClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
