package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"escape-room-service/internal/domain"
	"github.com/google/uuid"
)

const (
	msgCorrect       = "Correct!"
	msgIncorrect     = "Try again."
	msgAlreadySolved = "Already solved."
)

// ValidationRequest is an answer submission for a team.
type ValidationRequest struct {
	TeamID     string
	QuestionID string
	Answer     string
}

// ValidationResult never carries the correct answer.
type ValidationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GameService contains the event use cases: answer validation, registration and admin control.
type GameService struct {
	store     Store
	questions QuestionReader
	audit     AuditLog
	hub       *Hub
	now       func() time.Time

	// publishing is serialized so subscribers see snapshots in commit order
	publishMu sync.Mutex
}

// Option customizes a GameService.
type Option func(*GameService)

// WithClock is meant for tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithQuestionReader puts a cache in front of the store's question reads.
func WithQuestionReader(r QuestionReader) Option {
	return func(s *GameService) { s.questions = r }
}

func NewGameService(store Store, audit AuditLog, opts ...Option) *GameService {
	s := &GameService{
		store:     store,
		questions: store,
		audit:     audit,
		hub:       NewHub(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks a submitted answer and, when correct, advances the team in one atomic write.
func (s *GameService) Validate(ctx context.Context, caller domain.Caller, req ValidationRequest) (ValidationResult, error) {
	if !caller.Authenticated() {
		return ValidationResult{}, domain.ErrUnauthenticated
	}
	if req.TeamID == "" {
		req.TeamID = caller.Subject
	}
	if req.QuestionID == "" || req.Answer == "" {
		return ValidationResult{}, fmt.Errorf("%w: questionId and userAnswer are required", domain.ErrInvalidArgument)
	}
	if !caller.MayActFor(req.TeamID) {
		return ValidationResult{}, domain.ErrPermissionDenied
	}

	key, err := s.store.Answer(ctx, req.QuestionID)
	if err != nil {
		return ValidationResult{}, err
	}
	question, err := s.questions.Question(ctx, req.QuestionID)
	if err != nil {
		return ValidationResult{}, err
	}

	correct := domain.AnswerMatches(req.Answer, key.CorrectAnswer)
	result := ValidationResult{Success: correct, Message: msgIncorrect}

	var advanced bool
	err = s.store.Update(ctx, func(tx Tx) error {
		advanced = false
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if cfg.Status != domain.StatusStarted {
			return domain.ErrGameNotStarted
		}
		team, err := tx.Team(req.TeamID)
		if err != nil {
			return err
		}
		if team.StartTime == nil {
			return domain.ErrGameNotStarted
		}
		if team.Solved(req.QuestionID) {
			return nil
		}
		if team.CurrentQuestionID != req.QuestionID {
			return domain.ErrQuestionNotCurrent
		}
		if !correct {
			return nil
		}
		team.Advance(req.QuestionID, question.NextQuestionID, s.now())
		advanced = true
		return tx.PutTeam(team)
	})
	if err != nil {
		s.recordAttempt(ctx, req, correct)
		return ValidationResult{}, err
	}

	switch {
	case advanced:
		result.Message = msgCorrect
		log.Printf("team %s solved %s", req.TeamID, req.QuestionID)
		s.publish(ctx, false)
	case correct:
		result.Message = msgAlreadySolved
	}
	s.recordAttempt(ctx, req, correct)
	return result, nil
}

// recordAttempt is best-effort: audit failures are logged and never reach the caller.
func (s *GameService) recordAttempt(ctx context.Context, req ValidationRequest, correct bool) {
	if s.audit == nil {
		return
	}
	attempt := domain.AnswerAttempt{
		ID:              uuid.NewString(),
		TeamID:          req.TeamID,
		QuestionID:      req.QuestionID,
		SubmittedAnswer: req.Answer,
		Correct:         correct,
		Timestamp:       s.now(),
	}
	if err := s.audit.Append(ctx, attempt); err != nil {
		log.Printf("audit append failed for team %s: %v", req.TeamID, err)
	}
}

// Register creates the record of a new team. Teams joining a running game start immediately.
func (s *GameService) Register(ctx context.Context, caller domain.Caller, name string) (domain.TeamRecord, error) {
	if !caller.Authenticated() {
		return domain.TeamRecord{}, domain.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.TeamRecord{}, fmt.Errorf("%w: team name is required", domain.ErrInvalidArgument)
	}

	var team domain.TeamRecord
	err := s.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if cfg.Status == domain.StatusFinished {
			return domain.ErrGameFinished
		}
		if _, err := tx.Team(caller.Subject); err == nil {
			return domain.ErrTeamExists
		} else if !errors.Is(err, domain.ErrTeamNotFound) {
			return err
		}

		now := s.now()
		team = domain.NewTeamRecord(caller.Subject, name, cfg.FirstQuestionID, now)
		if cfg.Status == domain.StatusStarted {
			team.StartTime = &now
		}
		return tx.PutTeam(team)
	})
	if err != nil {
		return domain.TeamRecord{}, err
	}
	log.Printf("team %s registered as %q", team.TeamID, team.Name)
	s.publish(ctx, false)
	return team, nil
}

// Team returns the caller's own record.
func (s *GameService) Team(ctx context.Context, caller domain.Caller, teamID string) (domain.TeamRecord, error) {
	if !caller.Authenticated() {
		return domain.TeamRecord{}, domain.ErrUnauthenticated
	}
	if teamID == "" {
		teamID = caller.Subject
	}
	if !caller.MayActFor(teamID) {
		return domain.TeamRecord{}, domain.ErrPermissionDenied
	}
	return s.store.Team(ctx, teamID)
}

// CurrentQuestion returns the public content of the question the team is on.
func (s *GameService) CurrentQuestion(ctx context.Context, caller domain.Caller) (domain.Question, error) {
	team, err := s.Team(ctx, caller, "")
	if err != nil {
		return domain.Question{}, err
	}
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	if cfg.Status == domain.StatusWaiting {
		return domain.Question{}, domain.ErrGameNotStarted
	}
	if team.Finished() || team.CurrentQuestionID == "" {
		return domain.Question{}, domain.ErrTeamFinished
	}
	return s.questions.Question(ctx, team.CurrentQuestionID)
}

// Config returns the shared game config, defaulting to WAITING.
func (s *GameService) Config(ctx context.Context) (domain.GameConfig, error) {
	return s.store.Config(ctx)
}

// Leaderboard ranks every registered team.
func (s *GameService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.BuildLeaderboard(cfg, teams, s.now()), nil
}

// RankOf returns the 1-indexed rank of teamID, or false if the team is not registered.
func (s *GameService) RankOf(ctx context.Context, teamID string) (int, bool, error) {
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return 0, false, err
	}
	rank, ok := domain.RankOf(teams, teamID)
	return rank, ok, nil
}

// Attempts lists recent validation attempts for the admin.
func (s *GameService) Attempts(ctx context.Context, caller domain.Caller, limit int) ([]domain.AnswerAttempt, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.audit.Recent(ctx, limit)
}

// StartGame moves WAITING -> STARTED and stamps a start time on every team that lacks one,
// all in one atomic write. It returns the number of teams started.
func (s *GameService) StartGame(ctx context.Context, caller domain.Caller) (int, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, err
	}

	var started []string
	err := s.store.Update(ctx, func(tx Tx) error {
		started = started[:0]
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if err := cfg.Transition(domain.StatusStarted); err != nil {
			return err
		}
		teams, err := tx.Teams()
		if err != nil {
			return err
		}

		now := s.now()
		cfg.UpdatedAt = now
		for _, team := range teams {
			if team.StartTime != nil {
				continue
			}
			start := now
			team.StartTime = &start
			if len(team.PartsSolved) == 0 {
				team.CurrentQuestionID = cfg.FirstQuestionID
			}
			if err := tx.PutTeam(team); err != nil {
				return err
			}
			started = append(started, team.TeamID)
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return 0, err
	}
	log.Printf("game started, start time set for %d teams", len(started))
	s.publish(ctx, true)
	return len(started), nil
}

// EndGame moves STARTED -> FINISHED. Team records are left untouched.
func (s *GameService) EndGame(ctx context.Context, caller domain.Caller) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	err := s.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if err := cfg.Transition(domain.StatusFinished); err != nil {
			return err
		}
		cfg.UpdatedAt = s.now()
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return err
	}
	log.Printf("game ended")
	s.publish(ctx, true)
	return nil
}

// RestartGame returns to WAITING and deletes every team record. It returns the number deleted.
func (s *GameService) RestartGame(ctx context.Context, caller domain.Caller) (int, error) {
	if err := requireAdmin(caller); err != nil {
		return 0, err
	}

	var deleted []string
	err := s.store.Update(ctx, func(tx Tx) error {
		deleted = deleted[:0]
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if err := cfg.Transition(domain.StatusWaiting); err != nil {
			return err
		}
		cfg.UpdatedAt = s.now()
		teams, err := tx.Teams()
		if err != nil {
			return err
		}
		for _, team := range teams {
			if err := tx.DeleteTeam(team.TeamID); err != nil {
				return err
			}
			deleted = append(deleted, team.TeamID)
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return 0, err
	}
	log.Printf("game restarted, cleared %d teams", len(deleted))
	s.publish(ctx, true)
	return len(deleted), nil
}

// UploadQuestions ingests a question file: questions, answer keys and the total count
// are written in one atomic batch.
func (s *GameService) UploadQuestions(ctx context.Context, caller domain.Caller, r io.Reader) (UploadReport, error) {
	if err := requireAdmin(caller); err != nil {
		return UploadReport{}, err
	}
	entries, report, err := ParseQuestionFile(r)
	if err != nil {
		return UploadReport{}, err
	}
	for _, w := range report.Warnings {
		log.Printf("question upload: skipping %s", w)
	}

	err = s.store.Update(ctx, func(tx Tx) error {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		if cfg.Status == domain.StatusStarted {
			return domain.ErrGameInProgress
		}
		for _, entry := range entries {
			if err := tx.PutQuestion(entry.question()); err != nil {
				return err
			}
			if err := tx.PutAnswer(entry.answer()); err != nil {
				return err
			}
		}
		cfg.TotalQuestions = len(entries)
		cfg.FirstQuestionID = ""
		if len(entries) > 0 {
			cfg.FirstQuestionID = entries[0].ID
		}
		cfg.UpdatedAt = s.now()

		// teams waiting for the start follow the new chain
		teams, err := tx.Teams()
		if err != nil {
			return err
		}
		for _, team := range teams {
			if team.StartTime != nil || len(team.PartsSolved) > 0 || team.CurrentQuestionID == cfg.FirstQuestionID {
				continue
			}
			team.CurrentQuestionID = cfg.FirstQuestionID
			if err := tx.PutTeam(team); err != nil {
				return err
			}
		}
		return tx.PutConfig(cfg)
	})
	if err != nil {
		return UploadReport{}, err
	}
	if p, ok := s.questions.(purger); ok {
		p.Purge()
	}
	log.Printf("uploaded %d questions (%d skipped)", report.Accepted, report.Skipped)
	s.publish(ctx, true)
	return report, nil
}

// SubscribeConfig streams full GameConfig snapshots. The caller must invoke cancel.
func (s *GameService) SubscribeConfig(ctx context.Context) (<-chan domain.GameConfig, func(), error) {
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.config.subscribe(cfg)
	return ch, cancel, nil
}

// SubscribeLeaderboard streams full leaderboard snapshots. The caller must invoke cancel.
func (s *GameService) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.leaderboard.subscribe(lb)
	return ch, cancel, nil
}

// SubscribeTeam streams the caller's own record. The caller must invoke cancel.
func (s *GameService) SubscribeTeam(ctx context.Context, caller domain.Caller, teamID string) (<-chan TeamSnapshot, func(), error) {
	if !caller.Authenticated() {
		return nil, nil, domain.ErrUnauthenticated
	}
	if teamID == "" {
		teamID = caller.Subject
	}
	if !caller.MayActFor(teamID) {
		return nil, nil, domain.ErrPermissionDenied
	}
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribeTeam(teamID, teamSnapshot(teams, teamID))
	return ch, cancel, nil
}

// publish pushes fresh snapshots after a committed write. Store read failures
// only delay subscribers until the next write.
func (s *GameService) publish(ctx context.Context, configChanged bool) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	cfg, err := s.store.Config(ctx)
	if err != nil {
		log.Printf("publish: load config: %v", err)
		return
	}
	teams, err := s.store.Teams(ctx)
	if err != nil {
		log.Printf("publish: load teams: %v", err)
		return
	}

	if configChanged {
		s.hub.config.publish(cfg)
	}
	s.hub.leaderboard.publish(domain.BuildLeaderboard(cfg, teams, s.now()))

	// every rank may shift, so each watched team gets a fresh snapshot
	for id, f := range s.hub.watchedTeams() {
		f.publish(teamSnapshot(teams, id))
	}
}

func teamSnapshot(teams []domain.TeamRecord, teamID string) TeamSnapshot {
	snap := TeamSnapshot{TeamID: teamID}
	for _, team := range teams {
		if team.TeamID == teamID {
			t := team.Clone()
			snap.Registered = true
			snap.Team = &t
			break
		}
	}
	if rank, ok := domain.RankOf(teams, teamID); ok {
		snap.Rank = rank
	}
	return snap
}

func requireAdmin(caller domain.Caller) error {
	if !caller.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !caller.Admin {
		return domain.ErrPermissionDenied
	}
	return nil
}
