package http

import (
	"net/http"

	"exam-prep-service/internal/battle"
	"exam-prep-service/internal/domain"
	"github.com/gorilla/mux"
)

// BattleHandler serves the polled battle room API.
type BattleHandler struct {
	service *battle.Service
}

func NewBattleHandler(service *battle.Service) *BattleHandler {
	return &BattleHandler{service: service}
}

func (h *BattleHandler) Register(api *mux.Router) {
	api.HandleFunc("/battles/create", h.create).Methods("POST")
	api.HandleFunc("/battles/join", h.join).Methods("POST")
	api.HandleFunc("/battles/start", h.start).Methods("POST")
	api.HandleFunc("/battles/state", h.state).Methods("GET")
	api.HandleFunc("/battles/answer", h.answer).Methods("POST")
}

type createBattleRequest struct {
	UID    string              `json:"uid"`
	Name   string              `json:"name"`
	Config domain.BattleConfig `json:"config"`
}

func (h *BattleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid, err := actingUser(r.Context(), req.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.service.Create(r.Context(), uid, req.Name, req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

type joinBattleRequest struct {
	RoomID string `json:"roomId"`
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Team   string `json:"team"`
}

func (h *BattleHandler) join(w http.ResponseWriter, r *http.Request) {
	var req joinBattleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid, err := actingUser(r.Context(), req.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.service.Join(r.Context(), req.RoomID, uid, req.Name, req.Team)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type startBattleRequest struct {
	RoomID string `json:"roomId"`
	UID    string `json:"uid"`
}

func (h *BattleHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startBattleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid, err := actingUser(r.Context(), req.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := h.service.Start(r.Context(), req.RoomID, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *BattleHandler) state(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	if roomID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing roomId"})
		return
	}
	st, err := h.service.State(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *BattleHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req domain.BattleAnswer
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid, err := actingUser(r.Context(), req.UID)
	if err != nil {
		writeError(w, err)
		return
	}
	req.UID = uid
	res, err := h.service.Answer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
