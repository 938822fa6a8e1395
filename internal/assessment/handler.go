package assessment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/skillscan/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// getUserID extracts the authenticated user ID from the request context.
func getUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value("user_id").(int64)
	return uid, ok
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.Start(r.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, ErrInvalidConfiguration) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		log.Printf("[handler] StartSession error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to start session"})
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	sessionID := mux.Vars(r)["session_id"]

	resp, err := h.service.NextQuestion(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, "NextQuestion", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	sessionID := mux.Vars(r)["session_id"]

	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.ItemID == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "item_id is required"})
		return
	}
	if req.Reflection != nil {
		if c := req.Reflection.Confidence; c < 1 || c > 5 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "reflection confidence must be between 1 and 5"})
			return
		}
		if d := req.Reflection.PerceivedDifficulty; d < 1 || d > 5 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "reflection perceived_difficulty must be between 1 and 5"})
			return
		}
	}

	resp, err := h.service.SubmitAnswer(r.Context(), userID, sessionID, &req)
	if err != nil {
		h.writeServiceError(w, "SubmitAnswer", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	sessionID := mux.Vars(r)["session_id"]

	payload, err := h.service.GetReport(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, "GetReport", err)
		return
	}

	// The cached payload is served verbatim so every reader gets
	// identical bytes.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	resp, err := h.service.ListSessions(r.Context(), userID)
	if err != nil {
		log.Printf("[handler] ListSessions error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list sessions"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Session not found"})
	case errors.Is(err, ErrInvalidConfiguration):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrStaleSubmission):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Answer does not match the pending question"})
	case errors.Is(err, ErrReportNotReady):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Session is not complete"})
	default:
		log.Printf("[handler] %s error: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
