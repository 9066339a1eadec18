package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"escape-room-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// QuestionEntry is one element of an uploaded question file.
type QuestionEntry struct {
	ID             string `json:"id" validate:"required"`
	Title          string `json:"title"`
	Prompt         string `json:"prompt"`
	CorrectAnswer  string `json:"correctAnswer" validate:"required"`
	NextQuestionID string `json:"nextQuestionId"`
}

// UploadReport summarizes an ingested question file.
type UploadReport struct {
	Accepted int      `json:"accepted"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings,omitempty"`
}

type questionFile struct {
	Questions []json.RawMessage `json:"questions"`
}

// ParseQuestionFile reads {"questions": [...]} or a bare array of entries.
// Entries missing id or correctAnswer, or that are not objects, are skipped
// and reported as warnings rather than failing the whole file.
func ParseQuestionFile(r io.Reader) ([]QuestionEntry, UploadReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, UploadReport{}, fmt.Errorf("read question file: %w", err)
	}

	var raw []json.RawMessage
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, UploadReport{}, fmt.Errorf("%w: question file: %v", domain.ErrInvalidArgument, err)
		}
	default:
		var file questionFile
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, UploadReport{}, fmt.Errorf("%w: question file: %v", domain.ErrInvalidArgument, err)
		}
		if file.Questions == nil {
			return nil, UploadReport{}, fmt.Errorf("%w: question file has no questions array", domain.ErrInvalidArgument)
		}
		raw = file.Questions
	}

	var (
		entries []QuestionEntry
		report  UploadReport
		seen    = make(map[string]bool)
	)
	for i, msg := range raw {
		var entry QuestionEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("entry %d: not a question object", i))
			continue
		}
		entry.ID = strings.TrimSpace(entry.ID)
		entry.NextQuestionID = strings.TrimSpace(entry.NextQuestionID)
		if err := validate.Struct(entry); err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("entry %d (%q): %s", i, entry.ID, missingFields(err)))
			continue
		}
		if seen[entry.ID] {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("entry %d (%q): duplicate id", i, entry.ID))
			continue
		}
		seen[entry.ID] = true
		entries = append(entries, entry)
	}
	report.Accepted = len(entries)
	return entries, report, nil
}

func missingFields(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "missing " + strings.Join(fields, ", ")
}

func (e QuestionEntry) question() domain.Question {
	return domain.Question{
		ID:             e.ID,
		Title:          e.Title,
		Prompt:         e.Prompt,
		NextQuestionID: e.NextQuestionID,
	}
}

func (e QuestionEntry) answer() domain.AnswerKey {
	return domain.AnswerKey{QuestionID: e.ID, CorrectAnswer: e.CorrectAnswer}
}
