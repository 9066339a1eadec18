package http

import (
	"encoding/json"
	"log"
	"net/http"

	"escape-room-service/internal/app"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type WSHandler struct {
	service  *app.GameService
	auth     Authenticator
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, auth Authenticator) *WSHandler {
	return &WSHandler{
		service: service,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	UserAnswer string `json:"userAnswer"`
	TeamID     string `json:"teamId,omitempty"`
}

type answerResult struct {
	QuestionID string `json:"questionId"`
	app.ValidationResult
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades to a websocket that streams the config, the leaderboard and
// the caller's own team record, and accepts "answer" messages. The token comes
// from the token query parameter or the Authorization header. Admins may pass
// teamId to follow a team.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = r.Header.Get("Authorization")
	}
	caller, err := h.auth.Authenticate(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	teamID := r.URL.Query().Get("teamId")
	if teamID == "" && !caller.Admin {
		teamID = caller.Subject
	}

	ctx := r.Context()
	configs, cancelConfig, err := h.service.SubscribeConfig(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancelConfig()
	boards, cancelBoard, err := h.service.SubscribeLeaderboard(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancelBoard()
	var teams <-chan app.TeamSnapshot
	if teamID != "" {
		ch, cancelTeam, err := h.service.SubscribeTeam(ctx, caller, teamID)
		if err != nil {
			writeError(w, err)
			return
		}
		defer cancelTeam()
		teams = ch
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// the writer is the only goroutine touching conn for writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			var msg outboundMessage[any]
			select {
			case cfg, ok := <-configs:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "config", Payload: cfg}
			case lb, ok := <-boards:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "leaderboard", Payload: lb}
			case snap, ok := <-teams:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "team", Payload: snap}
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply(errorMessage("invalid-argument", "invalid answer payload"))
				continue
			}
			if payload.TeamID == "" {
				payload.TeamID = teamID
			}
			res, err := h.service.Validate(ctx, caller, app.ValidationRequest{
				TeamID:     payload.TeamID,
				QuestionID: payload.QuestionID,
				Answer:     payload.UserAnswer,
			})
			if err != nil {
				code, _, message := classify(err)
				reply(errorMessage(code, message))
				continue
			}
			reply(outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionID:       payload.QuestionID,
				ValidationResult: res,
			}})
		default:
			reply(errorMessage("invalid-argument", "unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func errorMessage(code, message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorDetail{Code: code, Message: message}}
}
