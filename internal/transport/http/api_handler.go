package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"lms-test-service/internal/app"
	"lms-test-service/internal/domain"
)

// APIHandler exposes test state, reports and attempts as JSON.
type APIHandler struct {
	service *app.TestService
	logger  *log.Logger
}

func NewAPIHandler(service *app.TestService, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &APIHandler{service: service, logger: logger}
}

// Register mounts the JSON routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tests", h.listTests)
	mux.HandleFunc("GET /api/tests/{testId}/state", h.getState)
	mux.HandleFunc("DELETE /api/tests/{testId}/state", h.deleteState)
	mux.HandleFunc("GET /api/tests/{testId}/report", h.getReport)
	mux.HandleFunc("POST /api/tests/{testId}/attempts", h.startAttempt)
	mux.HandleFunc("GET /api/attempts/{attemptId}", h.getAttempt)
	mux.HandleFunc("POST /api/attempts/{attemptId}/answers", h.recordAnswer)
	mux.HandleFunc("POST /api/attempts/{attemptId}/submit", h.submitAttempt)
}

type startRequest struct {
	Agreed bool `json:"agreed"`
}

type answerResponse struct {
	Recorded bool                   `json:"recorded"`
	Snapshot domain.SessionSnapshot `json:"snapshot"`
}

type submitResponse struct {
	Score      int  `json:"score"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	TimedOut   bool `json:"timedOut"`
}

func (h *APIHandler) listTests(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, catalog)
}

func (h *APIHandler) getState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.TestState(r.Context(), r.PathValue("testId")))
}

func (h *APIHandler) deleteState(w http.ResponseWriter, r *http.Request) {
	h.service.DeleteTestState(r.Context(), r.PathValue("testId"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context(), r.PathValue("testId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *APIHandler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	session, err := h.service.StartTest(r.Context(), r.PathValue("testId"), req.Agreed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	questions := session.Questions()
	public := make([]domain.PublicQuestion, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	h.writeJSON(w, http.StatusCreated, startedPayload{Snapshot: session.Snapshot(), Questions: public})
}

func (h *APIHandler) getAttempt(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.PathValue("attemptId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *APIHandler) recordAnswer(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.PathValue("attemptId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid answer payload", http.StatusBadRequest)
		return
	}
	recorded := session.RecordAnswer(payload.QuestionID, payload.Option)
	h.writeJSON(w, http.StatusOK, answerResponse{Recorded: recorded, Snapshot: session.Snapshot()})
}

func (h *APIHandler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.PathValue("attemptId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	result := session.Submit()
	h.writeJSON(w, http.StatusOK, submitResponse{
		Score:      result.Score,
		Total:      result.Total,
		Percentage: result.Percentage(),
		TimedOut:   session.Snapshot().TimedOut,
	})
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTestNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrTestNotCompleted):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrDeclarationRequired):
		status = http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrInvalidTest):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Printf("api error: %v", err)
	}
	h.writeJSON(w, status, errorPayload{Message: err.Error()})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("api encode error: %v", err)
	}
}
