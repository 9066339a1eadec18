package http

import (
	"log"
	"net/http"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/domain"
	"github.com/julienschmidt/httprouter"
)

// Authenticator resolves bearer tokens and signs anonymous sessions.
type Authenticator interface {
	Authenticate(raw string) (domain.Caller, error)
	Issue(subject string, admin bool) (string, domain.Caller, time.Time, error)
}

// NewRouter wires the REST API, the live feed socket and the join QR code.
func NewRouter(service *app.GameService, auth Authenticator, publicURL string) http.Handler {
	api := NewAPI(service, auth)
	ws := NewWSHandler(service, auth)

	mux := httprouter.New()
	mux.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Write([]byte("ok"))
	})

	mux.POST("/api/session", api.createSession)
	mux.GET("/api/config", api.config)
	mux.GET("/api/leaderboard", api.leaderboard)

	mux.POST("/api/teams", api.authenticated(api.register))
	mux.GET("/api/teams/me", api.authenticated(api.me))
	mux.GET("/api/question", api.authenticated(api.question))
	mux.POST("/api/validate", api.authenticated(api.validate))

	mux.POST("/api/admin/start", api.authenticated(api.start))
	mux.POST("/api/admin/end", api.authenticated(api.end))
	mux.POST("/api/admin/restart", api.authenticated(api.restart))
	mux.POST("/api/admin/questions", api.authenticated(api.uploadQuestions))
	mux.GET("/api/admin/attempts", api.authenticated(api.attempts))

	mux.GET("/api/join/qr", joinQRHandler(publicURL))
	mux.GET("/ws", ws.ServeWS)

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "internal", Message: "internal error"}})
	}
	return mux
}
