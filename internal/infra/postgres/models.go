package postgres

import (
	"time"

	"escape-room-service/internal/domain"
	"github.com/uptrace/bun"
)

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	Namespace      string `bun:"namespace,pk"`
	ID             string `bun:"id,pk"`
	Title          string `bun:"title,notnull"`
	Prompt         string `bun:"prompt,notnull"`
	NextQuestionID string `bun:"next_question_id,notnull"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{ID: r.ID, Title: r.Title, Prompt: r.Prompt, NextQuestionID: r.NextQuestionID}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answer_keys,alias:a"`

	Namespace     string `bun:"namespace,pk"`
	QuestionID    string `bun:"question_id,pk"`
	CorrectAnswer string `bun:"correct_answer,notnull"`
}

type teamRow struct {
	bun.BaseModel `bun:"table:teams,alias:t"`

	Namespace         string               `bun:"namespace,pk"`
	TeamID            string               `bun:"team_id,pk"`
	Name              string               `bun:"name,notnull"`
	CurrentQuestionID string               `bun:"current_question_id,notnull"`
	StartTime         *time.Time           `bun:"start_time"`
	EndTime           *time.Time           `bun:"end_time"`
	PartsSolved       map[string]time.Time `bun:"parts_solved,type:jsonb,notnull"`
	Score             int                  `bun:"score,notnull"`
	CreatedAt         time.Time            `bun:"created_at,notnull"`
}

func newTeamRow(namespace string, t domain.TeamRecord) teamRow {
	t = t.Clone()
	return teamRow{
		Namespace:         namespace,
		TeamID:            t.TeamID,
		Name:              t.Name,
		CurrentQuestionID: t.CurrentQuestionID,
		StartTime:         t.StartTime,
		EndTime:           t.EndTime,
		PartsSolved:       t.PartsSolved,
		Score:             t.Score,
		CreatedAt:         t.CreatedAt,
	}
}

func (r teamRow) toDomain() domain.TeamRecord {
	parts := r.PartsSolved
	if parts == nil {
		parts = make(map[string]time.Time)
	}
	return domain.TeamRecord{
		TeamID:            r.TeamID,
		Name:              r.Name,
		CurrentQuestionID: r.CurrentQuestionID,
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		PartsSolved:       parts,
		Score:             r.Score,
		CreatedAt:         r.CreatedAt,
	}
}

type configRow struct {
	bun.BaseModel `bun:"table:game_configs,alias:c"`

	Namespace       string    `bun:"namespace,pk"`
	Status          string    `bun:"status,notnull"`
	TotalQuestions  int       `bun:"total_questions,notnull"`
	FirstQuestionID string    `bun:"first_question_id,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (r configRow) toDomain() domain.GameConfig {
	return domain.GameConfig{
		Status:          domain.GameStatus(r.Status),
		TotalQuestions:  r.TotalQuestions,
		FirstQuestionID: r.FirstQuestionID,
		UpdatedAt:       r.UpdatedAt,
	}
}
