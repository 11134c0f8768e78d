package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/adaptquiz/internal/engine"
	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
)

type learnerResponse struct {
	*engine.LearnerSummary
	Message       string   `json:"feedback"`
	LevelMessages []string `json:"level_feedback"`
}

func (h *Handler) handleLearner(w http.ResponseWriter, r *http.Request) {
	sum, err := h.engine.Summary(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	msgs := make([]string, len(sum.Levels))
	for i, l := range sum.Levels {
		msgs[i] = appI18n.LevelFeedback(r.Context(), l.Level, l.Feedback)
	}
	writeJSON(w, http.StatusOK, learnerResponse{
		LearnerSummary: sum,
		Message:        appI18n.Feedback(r.Context(), sum.Feedback),
		LevelMessages:  msgs,
	})
}
