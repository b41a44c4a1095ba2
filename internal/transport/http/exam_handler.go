package http

import (
	"net/http"
	"strconv"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/selection"
	"github.com/gorilla/mux"
)

const maxLaunchWait = 60 * time.Second

// ExamHandler serves the exam session REST API.
type ExamHandler struct {
	service *app.ExamService
}

func NewExamHandler(service *app.ExamService) *ExamHandler {
	return &ExamHandler{service: service}
}

func (h *ExamHandler) Register(api *mux.Router) {
	api.HandleFunc("/catalog", h.catalog).Methods("GET")
	api.HandleFunc("/presets", h.presets).Methods("GET")
	api.HandleFunc("/papers", h.papers).Methods("GET")
	api.HandleFunc("/questions/generate-from-db", h.fromBank).Methods("POST")
	api.HandleFunc("/exam-results", h.saveResult).Methods("POST")
	api.HandleFunc("/mistakes", h.mistakes).Methods("GET")
	api.HandleFunc("/bookmarks", h.bookmarks).Methods("GET")

	api.HandleFunc("/handoff/launch", h.sendLaunch).Methods("POST")
	api.HandleFunc("/handoff/revision", h.sendRevision).Methods("POST")

	api.HandleFunc("/exams", h.create).Methods("POST")
	api.HandleFunc("/exams/{id}", h.get).Methods("GET")
	api.HandleFunc("/exams/{id}/topic-config", h.topicConfig).Methods("POST")
	api.HandleFunc("/exams/{id}/launch", h.launch).Methods("POST")
	api.HandleFunc("/exams/{id}/handoff/{kind}", h.consumeHandoff).Methods("POST")
	api.HandleFunc("/exams/{id}/answers", h.answer).Methods("POST")
	api.HandleFunc("/exams/{id}/navigate", h.navigate).Methods("POST")
	api.HandleFunc("/exams/{id}/bookmarks/{index}", h.toggleBookmark).Methods("POST")
	api.HandleFunc("/exams/{id}/submit", h.requestSubmit).Methods("POST")
	api.HandleFunc("/exams/{id}/submit", h.cancelSubmit).Methods("DELETE")
	api.HandleFunc("/exams/{id}/submit/confirm", h.confirmSubmit).Methods("POST")
	api.HandleFunc("/exams/{id}/reset", h.reset).Methods("POST")
	api.HandleFunc("/exams/{id}/review", h.review).Methods("GET")
}

func (h *ExamHandler) catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Catalog())
}

func (h *ExamHandler) presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Presets())
}

func (h *ExamHandler) papers(w http.ResponseWriter, r *http.Request) {
	papers, err := h.service.Papers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

func (h *ExamHandler) fromBank(w http.ResponseWriter, r *http.Request) {
	var req domain.BankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	qs, err := h.service.FromBank(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *ExamHandler) saveResult(w http.ResponseWriter, r *http.Request) {
	var result domain.ExamResult
	if err := decodeJSON(w, r, &result); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.SaveResult(r.Context(), UserID(r.Context()), result); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "saved"})
}

func (h *ExamHandler) mistakes(w http.ResponseWriter, r *http.Request) {
	qs, err := h.service.Mistakes(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *ExamHandler) bookmarks(w http.ResponseWriter, r *http.Request) {
	qs, err := h.service.Bookmarks(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *ExamHandler) sendLaunch(w http.ResponseWriter, r *http.Request) {
	var req domain.LaunchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.SendLaunch(r.Context(), UserID(r.Context()), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "queued"})
}

func (h *ExamHandler) sendRevision(w http.ResponseWriter, r *http.Request) {
	var queue domain.RevisionQueue
	if err := decodeJSON(w, r, &queue); err != nil {
		writeError(w, err)
		return
	}
	if err := h.service.SendRevision(r.Context(), UserID(r.Context()), queue); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "queued"})
}

func (h *ExamHandler) create(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.service.Create(r.Context(), UserID(r.Context())))
}

func (h *ExamHandler) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type topicConfigRequest struct {
	Discipline selection.Discipline    `json:"discipline"`
	Selections []domain.TopicSelection `json:"selections"`
}

func (h *ExamHandler) topicConfig(w http.ResponseWriter, r *http.Request) {
	var req topicConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.service.TopicConfig(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), req.Discipline, req.Selections)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ExamHandler) launch(w http.ResponseWriter, r *http.Request) {
	var req domain.LaunchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	_, done, err := h.service.Launch(r.Context(), id, UserID(r.Context()), req)
	h.respondLaunch(w, r, id, done, err)
}

func (h *ExamHandler) consumeHandoff(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ctx := r.Context()
	userID := UserID(r.Context())

	var (
		done <-chan struct{}
		err  error
	)
	switch vars["kind"] {
	case "launch":
		_, done, err = h.service.ConsumeLaunch(ctx, vars["id"], userID)
	case "revision":
		presentation := domain.Presentation(r.URL.Query().Get("presentation"))
		_, done, err = h.service.ConsumeRevision(ctx, vars["id"], userID, presentation)
	default:
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown handoff kind"})
		return
	}
	h.respondLaunch(w, r, vars["id"], done, err)
}

// respondLaunch answers 202 with the LOADING view, or with ?wait=true blocks
// until loading resolves and answers with the settled view.
func (h *ExamHandler) respondLaunch(w http.ResponseWriter, r *http.Request, id string, done <-chan struct{}, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusAccepted
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		timer := time.NewTimer(maxLaunchWait)
		defer timer.Stop()
		select {
		case <-done:
			status = http.StatusOK
		case <-timer.C:
		case <-r.Context().Done():
			return
		}
	}
	v, err := h.service.Get(r.Context(), id, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}

type answerRequest struct {
	Index  int `json:"index"`
	Choice int `json:"choice"`
}

func (h *ExamHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.service.Answer(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), req.Index, req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type navigateRequest struct {
	Direction app.Direction `json:"direction"`
}

func (h *ExamHandler) navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.service.Navigate(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), req.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type bookmarkResponse struct {
	Bookmarked bool      `json:"bookmarked"`
	Exam       exam.View `json:"exam"`
}

func (h *ExamHandler) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, errBadRequest)
		return
	}
	marked, v, err := h.service.ToggleBookmark(r.Context(), vars["id"], UserID(r.Context()), index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: marked, Exam: v})
}

func (h *ExamHandler) requestSubmit(w http.ResponseWriter, r *http.Request) {
	conf, err := h.service.RequestSubmit(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func (h *ExamHandler) cancelSubmit(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.CancelSubmit(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ExamHandler) confirmSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ConfirmSubmit(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ExamHandler) reset(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Reset(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ExamHandler) review(w http.ResponseWriter, r *http.Request) {
	filter := exam.ReviewFilter(r.URL.Query().Get("filter"))
	items, err := h.service.Review(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
