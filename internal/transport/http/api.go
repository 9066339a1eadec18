package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"github.com/julienschmidt/httprouter"
)

const maxUploadBytes = 5 << 20

// API serves the JSON endpoints over GameService.
type API struct {
	service *app.GameService
	auth    Authenticator
}

func NewAPI(service *app.GameService, auth Authenticator) *API {
	return &API{service: service, auth: auth}
}

type callerHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, caller domain.Caller)

// authenticated resolves the bearer token before calling next.
func (a *API) authenticated(next callerHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		caller, err := a.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, ps, caller)
	}
}

type sessionResponse struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// createSession is the anonymous sign-in: every call gets a new team subject.
func (a *API) createSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token, caller, expiresAt, err := a.auth.Issue("", false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, Subject: caller.Subject, ExpiresAt: expiresAt})
}

func (a *API) config(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cfg, err := a.service.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	lb, err := a.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

type registerRequest struct {
	Name string `json:"name"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	team, err := a.service.Register(r.Context(), caller, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

type teamResponse struct {
	Team domain.TeamRecord `json:"team"`
	Rank int               `json:"rank"`
}

func (a *API) me(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	team, err := a.service.Team(r.Context(), caller, r.URL.Query().Get("teamId"))
	if err != nil {
		writeError(w, err)
		return
	}
	rank, _, err := a.service.RankOf(r.Context(), team.TeamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teamResponse{Team: team, Rank: rank})
}

func (a *API) question(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	q, err := a.service.CurrentQuestion(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type validateRequest struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	TeamID     string `json:"teamId,omitempty"`
}

func (a *API) validate(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.service.Validate(r.Context(), caller, app.ValidationRequest{
		TeamID:     req.TeamID,
		QuestionID: req.QuestionID,
		Answer:     req.UserAnswer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type startResponse struct {
	Started int `json:"teamsStarted"`
}

func (a *API) start(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	n, err := a.service.StartGame(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Started: n})
}

func (a *API) end(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	if err := a.service.EndGame(r.Context(), caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restartResponse struct {
	Deleted int `json:"teamsDeleted"`
}

func (a *API) restart(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	n, err := a.service.RestartGame(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restartResponse{Deleted: n})
}

// uploadQuestions accepts the question file as the raw body or as the
// "file" part of a multipart form.
func (a *API) uploadQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: multipart upload needs a \"file\" part: %w", domain.ErrInvalidArgument, err))
			return
		}
		defer file.Close()
		body = file
	}

	report, err := a.service.UploadQuestions(r.Context(), caller, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) attempts(w http.ResponseWriter, r *http.Request, _ httprouter.Params, caller domain.Caller) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: limit must be a number", domain.ErrInvalidArgument))
			return
		}
		limit = n
	}
	attempts, err := a.service.Attempts(r.Context(), caller, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.AnswerAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidArgument)
		}
		return fmt.Errorf("%w: malformed JSON: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
