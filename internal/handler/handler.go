package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pavelanni/adaptquiz/internal/engine"
	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
)

// maxBodyBytes caps the size of a request body.
const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine *engine.Engine
	config model.ServerConfig
}

// New creates a new Handler.
func New(e *engine.Engine, cfg model.ServerConfig) *Handler {
	return &Handler{engine: e, config: cfg}
}

// Router builds the complete HTTP router with middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware(h.config.Lang))
	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
	r.Post("/questions", h.handleQuestions)
	r.Post("/submit_answers", h.handleSubmit)
	r.Get("/learners/{username}", h.handleLearner)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"questions": h.engine.QuestionCount(),
	})
}

type usernameRequest struct {
	Username *string `json:"username"`
}

type questionsResponse struct {
	Questions []model.Question   `json:"questions"`
	Weights   model.LevelWeights `json:"weights"`
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == nil {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	questions, weights, err := h.engine.SelectQuestions(r.Context(), *req.Username)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questionsResponse{Questions: questions, Weights: weights})
}

type answerRequest struct {
	QuestionID   *int64   `json:"question_id"`
	UserResponse *string  `json:"user_response"`
	StartTime    *float64 `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
}

type submitRequest struct {
	Username *string         `json:"username"`
	Answers  []answerRequest `json:"answers"`
}

type submitResponse struct {
	model.SessionResult
	Message string `json:"feedback"`
	Summary string `json:"summary"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == nil {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	answers, err := req.submittedAnswers()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.Submit(r.Context(), *req.Username, answers)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		SessionResult: res,
		Message:       appI18n.Feedback(r.Context(), res.Feedback),
		Summary:       appI18n.Tp(r.Context(), "CorrectAnswers", res.Correct),
	})
}

// submittedAnswers converts the request answers, rejecting any with a missing field.
func (req submitRequest) submittedAnswers() ([]model.SubmittedAnswer, error) {
	answers := make([]model.SubmittedAnswer, 0, len(req.Answers))
	for i, a := range req.Answers {
		var missing []string
		if a.QuestionID == nil {
			missing = append(missing, "question_id")
		}
		if a.UserResponse == nil {
			missing = append(missing, "user_response")
		}
		if a.StartTime == nil {
			missing = append(missing, "start_time")
		}
		if a.EndTime == nil {
			missing = append(missing, "end_time")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("answer %d: missing %s", i, strings.Join(missing, ", "))
		}
		answers = append(answers, model.SubmittedAnswer{
			QuestionID: *a.QuestionID,
			Response:   *a.UserResponse,
			StartTime:  *a.StartTime,
			EndTime:    *a.EndTime,
		})
	}
	return answers, nil
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes a
// 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors to HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, engine.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, engine.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username already exists")
	case errors.Is(err, context.Canceled):
		slog.Warn("request cancelled", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
