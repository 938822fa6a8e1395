package itembank

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/skillscan/backend/internal/models"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) ImportItems(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 50<<20) // 50MB limit

	var envelope models.ItemEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	if len(envelope.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "No items in payload"})
		return
	}

	for i, item := range envelope.Items {
		if err := validateImportItem(item); err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("item %d: %v", i, err)})
			return
		}
	}

	result, err := h.store.Import(r.Context(), envelope.Items)
	if err != nil {
		log.Printf("[itembank] import error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Import failed"})
		return
	}

	log.Printf("[itembank] imported %d items, skipped %d duplicates", result.Imported, result.Skipped)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ExportItems(w http.ResponseWriter, r *http.Request) {
	envelope, err := h.store.Export(r.Context())
	if err != nil {
		log.Printf("[itembank] export error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Export failed"})
		return
	}

	envelope.ExportedAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, envelope)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid item ID"})
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Item not found"})
		return
	}

	// Items fetched directly are served without the answer key, same as
	// items presented during a session.
	writeJSON(w, http.StatusOK, item.Presented())
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.store.Subjects(r.Context())
	if err != nil {
		log.Printf("[itembank] list subjects error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list subjects"})
		return
	}

	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"subjects": subjects})
}

func validateImportItem(item models.ImportItem) error {
	if item.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if item.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if !models.ValidGradeBands[item.GradeBand] {
		return fmt.Errorf("unknown grade band %q", item.GradeBand)
	}

	switch item.Type {
	case models.ItemMultipleChoice:
		if len(item.Options) < 2 {
			return fmt.Errorf("multiple choice needs at least 2 options")
		}
		found := false
		for _, opt := range item.Options {
			if opt == item.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("correct_answer must be one of the options")
		}
	case models.ItemFreeResponse:
		if item.CorrectAnswer == "" && item.AnswerPattern == nil {
			return fmt.Errorf("free response needs a correct_answer or answer_pattern")
		}
		if item.AnswerPattern != nil {
			if _, err := regexp.Compile(*item.AnswerPattern); err != nil {
				return fmt.Errorf("invalid answer_pattern: %v", err)
			}
		}
	default:
		return fmt.Errorf("unknown item type %q", item.Type)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
