package domain

import (
	"sort"
	"time"
)

// LeaderboardEntry is one ranked row of the public leaderboard.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	PublicTeam
	PartsCount int   `json:"partsCount"`
	DurationMS int64 `json:"durationMs,omitempty"`
}

// Leaderboard is a full snapshot of the ranking.
type Leaderboard struct {
	Status         GameStatus         `json:"status"`
	TotalQuestions int                `json:"totalQuestions"`
	Entries        []LeaderboardEntry `json:"entries"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Rank returns teams in leaderboard order without modifying the input:
// finished teams first by fastest completion, then unfinished teams by most
// parts solved and earliest start. Team id breaks remaining ties, so equal
// input always yields equal output.
func Rank(teams []TeamRecord) []TeamRecord {
	ranked := make([]TeamRecord, len(teams))
	copy(ranked, teams)
	sort.Slice(ranked, func(i, j int) bool {
		return rankLess(ranked[i], ranked[j])
	})
	return ranked
}

// RankOf returns the 1-indexed position of teamID, or false when absent.
func RankOf(teams []TeamRecord, teamID string) (int, bool) {
	for i, team := range Rank(teams) {
		if team.TeamID == teamID {
			return i + 1, true
		}
	}
	return 0, false
}

// BuildLeaderboard ranks teams and projects them for public consumption.
func BuildLeaderboard(cfg GameConfig, teams []TeamRecord, now time.Time) Leaderboard {
	ranked := Rank(teams)
	entries := make([]LeaderboardEntry, 0, len(ranked))
	for i, team := range ranked {
		entry := LeaderboardEntry{
			Rank:       i + 1,
			PublicTeam: team.Public(),
			PartsCount: len(team.PartsSolved),
		}
		if d, ok := completionTime(team); ok {
			entry.DurationMS = d.Milliseconds()
		}
		entries = append(entries, entry)
	}
	status := cfg.Status
	if status == "" {
		status = StatusWaiting
	}
	return Leaderboard{
		Status:         status,
		TotalQuestions: cfg.TotalQuestions,
		Entries:        entries,
		UpdatedAt:      now,
	}
}

func rankLess(a, b TeamRecord) bool {
	af, bf := a.Finished(), b.Finished()
	if af != bf {
		return af
	}

	if af {
		da, okA := completionTime(a)
		db, okB := completionTime(b)
		if okA != okB {
			return okA
		}
		if okA && da != db {
			return da < db
		}
	} else {
		pa, pb := len(a.PartsSolved), len(b.PartsSolved)
		if pa != pb {
			return pa > pb
		}
		sa, sb := a.StartTime != nil, b.StartTime != nil
		if sa != sb {
			return sa
		}
		if sa && !a.StartTime.Equal(*b.StartTime) {
			return a.StartTime.Before(*b.StartTime)
		}
	}
	return a.TeamID < b.TeamID
}

// completionTime is false when either timestamp is missing or the span is negative;
// such teams rank as infinitely slow.
func completionTime(t TeamRecord) (time.Duration, bool) {
	if t.StartTime == nil || t.EndTime == nil {
		return 0, false
	}
	d := t.EndTime.Sub(*t.StartTime)
	if d < 0 {
		return 0, false
	}
	return d, true
}
