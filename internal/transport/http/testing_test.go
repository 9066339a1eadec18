package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/auth"
	"escape-room-service/internal/infra/memory"
)

const questionFile = `{"questions": [
	{"id": "1a", "title": "Ohm", "prompt": "<p>V = I * ?</p>", "correctAnswer": "R", "nextQuestionId": "1b"},
	{"id": "1b", "title": "Last", "prompt": "<p>Capital of France?</p>", "correctAnswer": "Paris"}
]}`

type testServer struct {
	*httptest.Server
	auth       *auth.Authenticator
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	authenticator, err := auth.NewAuthenticator("test-secret", "game-master", time.Hour)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	store := memory.NewStore()
	service := app.NewGameService(store, memory.NewAuditLog(),
		app.WithQuestionReader(memory.NewQuestionCache(store, time.Minute)))
	server := httptest.NewServer(NewRouter(service, authenticator, "https://escape.example.com/join"))
	t.Cleanup(server.Close)

	adminToken, _, _, err := authenticator.Issue("game-master", false)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}
	return &testServer{Server: server, auth: authenticator, adminToken: adminToken}
}

// session signs in anonymously and returns the token and subject.
func (s *testServer) session(t *testing.T) (string, string) {
	t.Helper()
	var out sessionResponse
	s.do(t, http.MethodPost, "/api/session", "", nil, http.StatusCreated, &out)
	if out.Token == "" || out.Subject == "" {
		t.Fatalf("empty session %+v", out)
	}
	return out.Token, out.Subject
}

// do sends body as JSON (or raw bytes) and decodes the response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var e errorBody
		_ = json.NewDecoder(resp.Body).Decode(&e)
		t.Fatalf("%s %s: expected status %d, got %d (%+v)", method, path, wantStatus, resp.StatusCode, e)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}
