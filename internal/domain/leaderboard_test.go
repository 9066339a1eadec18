package domain

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	ts := t0.Add(d)
	return &ts
}

func solved(n int) map[string]time.Time {
	parts := make(map[string]time.Time, n)
	for i := 0; i < n; i++ {
		parts[string(rune('a'+i))] = t0
	}
	return parts
}

func ids(teams []TeamRecord) []string {
	out := make([]string, 0, len(teams))
	for _, team := range teams {
		out = append(out, team.TeamID)
	}
	return out
}

func assertOrder(t *testing.T, got []TeamRecord, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotIDs)
		}
	}
}

func TestRankFinishedBeforeUnfinishedByDuration(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "A", StartTime: at(0), EndTime: at(120 * time.Second), PartsSolved: solved(3)},
		{TeamID: "B", StartTime: at(0), EndTime: at(90 * time.Second), PartsSolved: solved(3)},
		{TeamID: "C", StartTime: at(0), PartsSolved: solved(3)},
	}
	assertOrder(t, Rank(teams), "B", "A", "C")
}

func TestRankUnfinishedTieBreaksOnStartTime(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "E", StartTime: at(10 * time.Second), PartsSolved: solved(2)},
		{TeamID: "D", StartTime: at(0), PartsSolved: solved(2)},
	}
	assertOrder(t, Rank(teams), "D", "E")
}

func TestRankUnfinishedByProgress(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "slow", StartTime: at(0), PartsSolved: solved(1)},
		{TeamID: "fast", StartTime: at(time.Minute), PartsSolved: solved(4)},
		{TeamID: "idle", PartsSolved: solved(1)},
	}
	assertOrder(t, Rank(teams), "fast", "slow", "idle")
}

func TestRankFinishedWithoutStartIsSlowest(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "broken", EndTime: at(time.Second)},
		{TeamID: "negative", StartTime: at(time.Hour), EndTime: at(time.Second)},
		{TeamID: "ok", StartTime: at(0), EndTime: at(time.Hour)},
		{TeamID: "playing", StartTime: at(0), PartsSolved: solved(5)},
	}
	assertOrder(t, Rank(teams), "ok", "broken", "negative", "playing")
}

func TestRankIsDeterministicAndDoesNotMutateInput(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "z", PartsSolved: solved(1)},
		{TeamID: "y", PartsSolved: solved(1)},
		{TeamID: "x", PartsSolved: solved(1)},
	}
	first := Rank(teams)
	second := Rank(teams)
	assertOrder(t, first, "x", "y", "z")
	assertOrder(t, second, ids(first)...)
	if teams[0].TeamID != "z" {
		t.Fatalf("input slice was reordered: %v", ids(teams))
	}
}

func TestRankOf(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "A", StartTime: at(0), PartsSolved: solved(1)},
		{TeamID: "B", StartTime: at(0), PartsSolved: solved(2)},
	}
	if rank, ok := RankOf(teams, "A"); !ok || rank != 2 {
		t.Fatalf("expected A at rank 2, got %d (%v)", rank, ok)
	}
	if _, ok := RankOf(teams, "missing"); ok {
		t.Fatalf("expected missing team to have no rank")
	}
}

func TestBuildLeaderboardProjectsPublicFields(t *testing.T) {
	teams := []TeamRecord{
		{TeamID: "A", Name: "Alpha", CurrentQuestionID: "", StartTime: at(0), EndTime: at(time.Minute), PartsSolved: solved(2), Score: 2},
		{TeamID: "B", Name: "Beta", CurrentQuestionID: "q2", StartTime: at(0), PartsSolved: solved(1), Score: 1},
	}
	lb := BuildLeaderboard(GameConfig{Status: StatusStarted, TotalQuestions: 2}, teams, t0)
	if lb.Status != StatusStarted || lb.TotalQuestions != 2 {
		t.Fatalf("unexpected header %+v", lb)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].TeamID != "A" || lb.Entries[0].Rank != 1 {
		t.Fatalf("unexpected entries %+v", lb.Entries)
	}
	if !lb.Entries[0].Finished || lb.Entries[0].DurationMS != time.Minute.Milliseconds() {
		t.Fatalf("expected finished entry with duration, got %+v", lb.Entries[0])
	}
	if lb.Entries[1].PartsCount != 1 || lb.Entries[1].DurationMS != 0 {
		t.Fatalf("unexpected unfinished entry %+v", lb.Entries[1])
	}
}
