package http

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
)

func TestGameFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var report app.UploadReport
	s.do(t, http.MethodPost, "/api/admin/questions", s.adminToken, questionFile, http.StatusOK, &report)
	if report.Accepted != 2 {
		t.Fatalf("expected 2 accepted, got %+v", report)
	}

	token, subject := s.session(t)
	var team domain.TeamRecord
	s.do(t, http.MethodPost, "/api/teams", token, registerRequest{Name: "Sparks"}, http.StatusCreated, &team)
	if team.TeamID != subject || team.CurrentQuestionID != "1a" {
		t.Fatalf("unexpected team %+v", team)
	}

	s.do(t, http.MethodGet, "/api/question", token, nil, http.StatusConflict, nil)

	var started startResponse
	s.do(t, http.MethodPost, "/api/admin/start", s.adminToken, nil, http.StatusOK, &started)
	if started.Started != 1 {
		t.Fatalf("expected 1 team started, got %+v", started)
	}

	var q domain.Question
	s.do(t, http.MethodGet, "/api/question", token, nil, http.StatusOK, &q)
	if q.ID != "1a" || q.Title != "Ohm" {
		t.Fatalf("unexpected question %+v", q)
	}

	var res app.ValidationResult
	s.do(t, http.MethodPost, "/api/validate", token, validateRequest{QuestionID: "1a", UserAnswer: "nope"}, http.StatusOK, &res)
	if res.Success {
		t.Fatalf("expected wrong answer, got %+v", res)
	}
	s.do(t, http.MethodPost, "/api/validate", token, validateRequest{QuestionID: "1a", UserAnswer: " r "}, http.StatusOK, &res)
	if !res.Success || res.Message != "Correct!" {
		t.Fatalf("expected correct answer, got %+v", res)
	}
	s.do(t, http.MethodPost, "/api/validate", token, validateRequest{QuestionID: "1b", UserAnswer: "paris"}, http.StatusOK, &res)

	var me teamResponse
	s.do(t, http.MethodGet, "/api/teams/me", token, nil, http.StatusOK, &me)
	if me.Rank != 1 || me.Team.Score != 2 || me.Team.EndTime == nil {
		t.Fatalf("expected finished team ranked first, got %+v", me)
	}

	var lb domain.Leaderboard
	s.do(t, http.MethodGet, "/api/leaderboard", "", nil, http.StatusOK, &lb)
	if len(lb.Entries) != 1 || !lb.Entries[0].Finished || lb.TotalQuestions != 2 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	s.do(t, http.MethodPost, "/api/admin/end", s.adminToken, nil, http.StatusNoContent, nil)
	var cfg domain.GameConfig
	s.do(t, http.MethodGet, "/api/config", "", nil, http.StatusOK, &cfg)
	if cfg.Status != domain.StatusFinished {
		t.Fatalf("expected FINISHED, got %s", cfg.Status)
	}

	var attempts []domain.AnswerAttempt
	s.do(t, http.MethodGet, "/api/admin/attempts?limit=2", s.adminToken, nil, http.StatusOK, &attempts)
	if len(attempts) != 2 || attempts[0].QuestionID != "1b" {
		t.Fatalf("unexpected attempts %+v", attempts)
	}

	var restarted restartResponse
	s.do(t, http.MethodPost, "/api/admin/restart", s.adminToken, nil, http.StatusOK, &restarted)
	if restarted.Deleted != 1 {
		t.Fatalf("expected 1 team deleted, got %+v", restarted)
	}
	s.do(t, http.MethodGet, "/api/teams/me", token, nil, http.StatusNotFound, nil)
}

func TestErrorCodes(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.session(t)

	var e errorBody
	s.do(t, http.MethodPost, "/api/validate", "", validateRequest{QuestionID: "1a", UserAnswer: "x"}, http.StatusUnauthorized, &e)
	if e.Error.Code != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %+v", e)
	}
	s.do(t, http.MethodPost, "/api/admin/start", token, nil, http.StatusForbidden, &e)
	if e.Error.Code != "permission-denied" {
		t.Fatalf("expected permission-denied, got %+v", e)
	}
	s.do(t, http.MethodPost, "/api/validate", token, validateRequest{QuestionID: "1a"}, http.StatusBadRequest, &e)
	if e.Error.Code != "invalid-argument" {
		t.Fatalf("expected invalid-argument, got %+v", e)
	}
	s.do(t, http.MethodPost, "/api/validate", token, "{broken", http.StatusBadRequest, &e)
	s.do(t, http.MethodPost, "/api/validate", token, validateRequest{QuestionID: "zz", UserAnswer: "x"}, http.StatusNotFound, &e)
	if e.Error.Code != "not-found" {
		t.Fatalf("expected not-found, got %+v", e)
	}
	s.do(t, http.MethodPost, "/api/admin/end", s.adminToken, nil, http.StatusConflict, &e)
	if e.Error.Code != "failed-precondition" {
		t.Fatalf("expected failed-precondition, got %+v", e)
	}
	s.do(t, http.MethodGet, "/api/admin/attempts?limit=many", s.adminToken, nil, http.StatusBadRequest, &e)
}

func TestMultipartUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "questions.json")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(questionFile)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/admin/questions", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var cfg domain.GameConfig
	s.do(t, http.MethodGet, "/api/config", "", nil, http.StatusOK, &cfg)
	if cfg.TotalQuestions != 2 || cfg.FirstQuestionID != "1a" {
		t.Fatalf("unexpected config after upload %+v", cfg)
	}
}

func TestOversizedUploadRejected(t *testing.T) {
	s := newTestServer(t)

	body := bytes.Repeat([]byte(" "), maxUploadBytes+1<<20)
	var e errorBody
	s.do(t, http.MethodPost, "/api/admin/questions", s.adminToken, body, http.StatusRequestEntityTooLarge, &e)
	if e.Error.Code != "invalid-argument" {
		t.Fatalf("expected invalid-argument, got %+v", e)
	}

	var cfg domain.GameConfig
	s.do(t, http.MethodGet, "/api/config", "", nil, http.StatusOK, &cfg)
	if cfg.TotalQuestions != 0 {
		t.Fatalf("oversized upload changed config: %+v", cfg)
	}
}

func TestJoinQR(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/api/join/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected qr response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	magic := make([]byte, 8)
	if _, err := io.ReadFull(resp.Body, magic); err != nil {
		t.Fatalf("read png: %v", err)
	}
	if !bytes.Equal(magic, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("expected png signature, got %q", magic)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
