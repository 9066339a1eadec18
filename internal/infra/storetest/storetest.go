// Package storetest holds behaviour checks shared by every app.Store and app.AuditLog backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
)

var errAbort = errors.New("abort batch")

// RunStore exercises a fresh, empty store built by newStore for each subtest.
func RunStore(t *testing.T, newStore func(t *testing.T) app.Store) {
	t.Run("DefaultConfig", func(t *testing.T) { testDefaultConfig(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("BatchCommit", func(t *testing.T) { testBatchCommit(t, newStore(t)) })
	t.Run("BatchAbort", func(t *testing.T) { testBatchAbort(t, newStore(t)) })
	t.Run("DeleteTeams", func(t *testing.T) { testDeleteTeams(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
}

// RunAuditLog checks append and newest-first listing.
func RunAuditLog(t *testing.T, log app.AuditLog) {
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := log.Append(ctx, domain.AnswerAttempt{
			ID:              fmt.Sprintf("attempt-%d", i),
			TeamID:          "t1",
			QuestionID:      "1a",
			SubmittedAnswer: fmt.Sprintf("guess %d", i),
			Correct:         i == 2,
			Timestamp:       base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	recent, err := log.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(recent))
	}
	if recent[0].ID != "attempt-2" || !recent[0].Correct || recent[1].ID != "attempt-1" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	if recent[0].SubmittedAnswer != "guess 2" || recent[0].TeamID != "t1" {
		t.Fatalf("attempt fields not preserved: %+v", recent[0])
	}
}

func testDefaultConfig(t *testing.T, store app.Store) {
	cfg, err := store.Config(context.Background())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Status != domain.StatusWaiting || cfg.TotalQuestions != 0 {
		t.Fatalf("expected default WAITING config, got %+v", cfg)
	}
	teams, err := store.Teams(context.Background())
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if len(teams) != 0 {
		t.Fatalf("expected no teams, got %d", len(teams))
	}
}

func testNotFound(t *testing.T, store app.Store) {
	ctx := context.Background()
	if _, err := store.Question(ctx, "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := store.Answer(ctx, "nope"); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected answer not found, got %v", err)
	}
	if _, err := store.Team(ctx, "nope"); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected team not found, got %v", err)
	}
	err := store.Update(ctx, func(tx app.Tx) error {
		_, err := tx.Team("nope")
		return err
	})
	if !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected team not found inside tx, got %v", err)
	}
}

func testBatchCommit(t *testing.T, store app.Store) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	team := domain.NewTeamRecord("t1", "Sparks", "1a", now)
	team.StartTime = &now
	team.Advance("1a", "1b", now.Add(time.Minute))

	err := store.Update(ctx, func(tx app.Tx) error {
		if err := tx.PutQuestion(domain.Question{ID: "1a", Title: "Ohm", Prompt: "<p>V = ?</p>", NextQuestionID: "1b"}); err != nil {
			return err
		}
		if err := tx.PutAnswer(domain.AnswerKey{QuestionID: "1a", CorrectAnswer: "IR"}); err != nil {
			return err
		}
		if err := tx.PutTeam(team); err != nil {
			return err
		}
		return tx.PutConfig(domain.GameConfig{Status: domain.StatusStarted, TotalQuestions: 2, FirstQuestionID: "1a", UpdatedAt: now})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	q, err := store.Question(ctx, "1a")
	if err != nil || q.NextQuestionID != "1b" || q.Prompt != "<p>V = ?</p>" {
		t.Fatalf("unexpected question %+v (%v)", q, err)
	}
	a, err := store.Answer(ctx, "1a")
	if err != nil || a.CorrectAnswer != "IR" {
		t.Fatalf("unexpected answer %+v (%v)", a, err)
	}
	cfg, err := store.Config(ctx)
	if err != nil || cfg.Status != domain.StatusStarted || cfg.TotalQuestions != 2 || cfg.FirstQuestionID != "1a" {
		t.Fatalf("unexpected config %+v (%v)", cfg, err)
	}

	got, err := store.Team(ctx, "t1")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if got.Name != "Sparks" || got.Score != 1 || got.CurrentQuestionID != "1b" {
		t.Fatalf("unexpected team %+v", got)
	}
	if got.StartTime == nil || !got.StartTime.Equal(now) || got.EndTime != nil {
		t.Fatalf("unexpected timestamps %+v", got)
	}
	if solvedAt, ok := got.PartsSolved["1a"]; !ok || !solvedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected parts solved %+v", got.PartsSolved)
	}
}

func testBatchAbort(t *testing.T, store app.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.Update(ctx, func(tx app.Tx) error {
		if err := tx.PutTeam(domain.NewTeamRecord("t1", "Sparks", "1a", now)); err != nil {
			return err
		}
		if err := tx.PutConfig(domain.GameConfig{Status: domain.StatusStarted}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if _, err := store.Team(ctx, "t1"); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("aborted team write leaked: %v", err)
	}
	cfg, err := store.Config(ctx)
	if err != nil || cfg.Status != domain.StatusWaiting {
		t.Fatalf("aborted config write leaked: %+v (%v)", cfg, err)
	}
}

func testDeleteTeams(t *testing.T, store app.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	err := store.Update(ctx, func(tx app.Tx) error {
		for _, id := range []string{"t1", "t2", "t3"} {
			if err := tx.PutTeam(domain.NewTeamRecord(id, "team "+id, "1a", now)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.Update(ctx, func(tx app.Tx) error {
		teams, err := tx.Teams()
		if err != nil {
			return err
		}
		if len(teams) != 3 {
			return fmt.Errorf("expected 3 teams in tx, got %d", len(teams))
		}
		for _, team := range teams {
			if err := tx.DeleteTeam(team.TeamID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	teams, err := store.Teams(ctx)
	if err != nil {
		t.Fatalf("teams: %v", err)
	}
	if len(teams) != 0 {
		t.Fatalf("expected all teams deleted, got %d", len(teams))
	}
}

// testConcurrentIncrements checks that read-modify-write batches on the same
// team never lose an update.
func testConcurrentIncrements(t *testing.T, store app.Store) {
	ctx := context.Background()
	now := time.Now().UTC()
	if err := store.Update(ctx, func(tx app.Tx) error {
		return tx.PutTeam(domain.NewTeamRecord("t1", "Sparks", "q0", now))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Update(ctx, func(tx app.Tx) error {
				team, err := tx.Team("t1")
				if err != nil {
					return err
				}
				team.Advance(fmt.Sprintf("q%d", i), fmt.Sprintf("q%d", i+1), now)
				return tx.PutTeam(team)
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent update: %v", err)
		}
	}

	team, err := store.Team(ctx, "t1")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if team.Score != workers || len(team.PartsSolved) != workers {
		t.Fatalf("expected %d increments, got score=%d parts=%d", workers, team.Score, len(team.PartsSolved))
	}
}
