package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"exam-prep-service/internal/battle"
	"exam-prep-service/internal/domain"
	"github.com/gorilla/websocket"
)

const refreshInterval = time.Second

// WSHandler pushes battle room snapshots and accepts answers over a websocket.
type WSHandler struct {
	service  *battle.Service
	upgrader websocket.Upgrader
	refresh  time.Duration
}

func NewWSHandler(service *battle.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		refresh: refreshInterval,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Choice        int `json:"choice"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams room snapshots ("state") for a player who already joined
// the room over REST. The player leaves the room when the socket closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	uid, err := actingUser(r.Context(), r.URL.Query().Get("uid"))
	if roomID == "" || err != nil {
		http.Error(w, "missing roomId or uid", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer h.service.Leave(r.Context(), roomID, uid)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("[ws] write error: %v", err)
				return
			}
		}
	}()

	// Relays room snapshots. The ticker lets the room notice its clock ran out
	// even when nobody answers, which broadcasts the FINISHED snapshot.
	go func() {
		defer close(updatesDone)
		ticker := time.NewTicker(h.refresh)
		defer ticker.Stop()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-ticker.C:
				_, _ = h.service.State(r.Context(), roomID)
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			res, err := h.service.Answer(r.Context(), domain.BattleAnswer{
				RoomID:        roomID,
				UID:           uid,
				QuestionIndex: payload.QuestionIndex,
				Choice:        payload.Choice,
			})
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: res}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
