package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/selection"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("invalid request body")

type ErrorResponse struct {
	Error string `json:"error"`
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorStatus struct {
	err    error
	status int
	// exact errors are written with the sentinel text so API clients can match them.
	exact bool
}

var errorStatuses = []errorStatus{
	{err: errBadRequest, status: http.StatusBadRequest},

	{err: domain.ErrRoomNotFound, status: http.StatusNotFound, exact: true},
	{err: domain.ErrPlayerNotFound, status: http.StatusNotFound, exact: true},
	{err: domain.ErrNotHost, status: http.StatusForbidden, exact: true},
	{err: domain.ErrBattleNotActive, status: http.StatusConflict, exact: true},
	{err: domain.ErrBattleStarted, status: http.StatusConflict, exact: true},
	{err: domain.ErrAlreadyAnswered, status: http.StatusConflict, exact: true},
	{err: domain.ErrStaleQuestion, status: http.StatusConflict, exact: true},
	{err: domain.ErrInvalidChoice, status: http.StatusBadRequest, exact: true},

	{err: domain.ErrSessionNotFound, status: http.StatusNotFound},
	{err: domain.ErrHandoffEmpty, status: http.StatusNotFound},
	{err: selection.ErrPaperNotFound, status: http.StatusNotFound},
	{err: domain.ErrUnauthenticated, status: http.StatusUnauthorized},
	{err: domain.ErrForbidden, status: http.StatusForbidden},

	{err: domain.ErrInvalidConfig, status: http.StatusBadRequest},
	{err: domain.ErrInvalidQuestion, status: http.StatusBadRequest},
	{err: domain.ErrQuestionIndex, status: http.StatusBadRequest},
	{err: selection.ErrUnknownSubject, status: http.StatusBadRequest},
	{err: selection.ErrUnknownChapter, status: http.StatusBadRequest},
	{err: selection.ErrUnknownTopic, status: http.StatusBadRequest},
	{err: selection.ErrChapterNotSelected, status: http.StatusBadRequest},
	{err: selection.ErrSingleChapterOnly, status: http.StatusBadRequest},
	{err: selection.ErrDuplicateChapter, status: http.StatusBadRequest},
	{err: selection.ErrUnknownDiscipline, status: http.StatusBadRequest},
	{err: selection.ErrNoChapters, status: http.StatusBadRequest},
	{err: selection.ErrChapterWithoutTopics, status: http.StatusBadRequest},
	{err: selection.ErrUnknownPreset, status: http.StatusBadRequest},
	{err: selection.ErrUnknownTier, status: http.StatusBadRequest},

	{err: domain.ErrInvalidTransition, status: http.StatusConflict},
	{err: exam.ErrNavigationUnavailable, status: http.StatusConflict},
	{err: exam.ErrAtFirstQuestion, status: http.StatusConflict},
	{err: exam.ErrAtLastQuestion, status: http.StatusConflict},
	{err: exam.ErrNotVisible, status: http.StatusConflict},
	{err: exam.ErrSubmitUnavailable, status: http.StatusConflict},
	{err: exam.ErrNotConfirming, status: http.StatusConflict},
	{err: exam.ErrAlreadySubmitted, status: http.StatusConflict},

	{err: domain.ErrNoQuestions, status: http.StatusUnprocessableEntity},
	{err: domain.ErrNotEnoughQuestions, status: http.StatusUnprocessableEntity},
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// writeError maps err onto a status code. Unknown errors are logged and hidden.
func writeError(w http.ResponseWriter, err error) {
	for _, es := range errorStatuses {
		if !errors.Is(err, es.err) {
			continue
		}
		msg := err.Error()
		if es.exact {
			msg = es.err.Error()
		}
		writeJSON(w, es.status, ErrorResponse{Error: msg})
		return
	}
	log.Printf("[http] internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	return nil
}
