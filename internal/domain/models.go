package domain

import "time"

// Question is the public content of one step in the sequence.
// An empty NextQuestionID marks the terminal question.
type Question struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Prompt         string `json:"prompt"`
	NextQuestionID string `json:"nextQuestionId,omitempty"`
}

// Terminal reports whether solving the question finishes the game for a team.
func (q Question) Terminal() bool {
	return q.NextQuestionID == ""
}

// AnswerKey holds the correct answer for a question. Only the validator reads it.
type AnswerKey struct {
	QuestionID    string `json:"questionId"`
	CorrectAnswer string `json:"correctAnswer"`
}

// TeamRecord is the single authoritative progress record of a team.
type TeamRecord struct {
	TeamID            string               `json:"teamId"`
	Name              string               `json:"name"`
	CurrentQuestionID string               `json:"currentQuestionId,omitempty"`
	StartTime         *time.Time           `json:"startTime,omitempty"`
	EndTime           *time.Time           `json:"endTime,omitempty"`
	PartsSolved       map[string]time.Time `json:"partsSolved"`
	Score             int                  `json:"score"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// NewTeamRecord builds the record of a freshly registered team.
func NewTeamRecord(teamID, name, firstQuestionID string, now time.Time) TeamRecord {
	return TeamRecord{
		TeamID:            teamID,
		Name:              name,
		CurrentQuestionID: firstQuestionID,
		PartsSolved:       make(map[string]time.Time),
		CreatedAt:         now,
	}
}

// Finished reports whether the team reached the terminal question.
func (t TeamRecord) Finished() bool {
	return t.EndTime != nil
}

// Solved reports whether questionID is already in the team's solved set.
func (t TeamRecord) Solved(questionID string) bool {
	_, ok := t.PartsSolved[questionID]
	return ok
}

// Advance records questionID as solved at now and moves the team to next.
// An empty next finishes the team.
func (t *TeamRecord) Advance(questionID, next string, now time.Time) {
	if t.PartsSolved == nil {
		t.PartsSolved = make(map[string]time.Time)
	}
	t.PartsSolved[questionID] = now
	t.Score++
	t.CurrentQuestionID = next
	if next == "" {
		end := now
		t.EndTime = &end
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (t TeamRecord) Clone() TeamRecord {
	out := t
	if t.StartTime != nil {
		start := *t.StartTime
		out.StartTime = &start
	}
	if t.EndTime != nil {
		end := *t.EndTime
		out.EndTime = &end
	}
	out.PartsSolved = make(map[string]time.Time, len(t.PartsSolved))
	for id, at := range t.PartsSolved {
		out.PartsSolved[id] = at
	}
	return out
}

// PublicTeam is the leaderboard-readable projection of a TeamRecord.
type PublicTeam struct {
	TeamID      string               `json:"teamId"`
	Name        string               `json:"name"`
	StartTime   *time.Time           `json:"startTime,omitempty"`
	EndTime     *time.Time           `json:"endTime,omitempty"`
	PartsSolved map[string]time.Time `json:"partsSolved"`
	Score       int                  `json:"score"`
	Finished    bool                 `json:"finished"`
}

// Public strips the owner-only fields.
func (t TeamRecord) Public() PublicTeam {
	c := t.Clone()
	return PublicTeam{
		TeamID:      c.TeamID,
		Name:        c.Name,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		PartsSolved: c.PartsSolved,
		Score:       c.Score,
		Finished:    c.Finished(),
	}
}

// GameConfig is the shared event status record.
type GameConfig struct {
	Status          GameStatus `json:"status"`
	TotalQuestions  int        `json:"totalQuestions"`
	FirstQuestionID string     `json:"firstQuestionId,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DefaultGameConfig is what a namespace reads before anything was written.
func DefaultGameConfig() GameConfig {
	return GameConfig{Status: StatusWaiting}
}

// AnswerAttempt is one audit log entry.
type AnswerAttempt struct {
	ID              string    `json:"id"`
	TeamID          string    `json:"teamId"`
	QuestionID      string    `json:"questionId"`
	SubmittedAnswer string    `json:"submittedAnswer"`
	Correct         bool      `json:"correct"`
	Timestamp       time.Time `json:"timestamp"`
}

// Caller identifies who invokes an operation.
type Caller struct {
	Subject string
	Admin   bool
}

// Authenticated reports whether the call carries an identity.
func (c Caller) Authenticated() bool {
	return c.Subject != ""
}

// MayActFor reports whether the caller may act on teamID's record.
func (c Caller) MayActFor(teamID string) bool {
	return c.Admin || (c.Subject != "" && c.Subject == teamID)
}
