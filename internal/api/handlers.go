package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"gwi.com/docs-assistant/internal/auth"
	"gwi.com/docs-assistant/internal/core"
	"gwi.com/docs-assistant/internal/store"
)

// QAService is what the handlers need from the question-answering core.
type QAService interface {
	Ask(ctx context.Context, question, imageBaseURL string) (*store.QA, error)
	History(ctx context.Context) ([]store.QA, error)
	ClearHistory(ctx context.Context) error
}

type contextKey string

const subjectKey contextKey = "subject"

type APIHandler struct {
	qaService QAService
	jwtSecret string
	log       zerolog.Logger
}

// NewAPIHandler wires the handlers. An empty jwtSecret disables authentication.
func NewAPIHandler(qa QAService, jwtSecret string, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		qaService: qa,
		jwtSecret: jwtSecret,
		log:       logger.With().Str("component", "api").Logger(),
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		subject, err := auth.ValidateJWT(h.jwtSecret, tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer string   `json:"answer"`
	Images []string `json:"images"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		respondError(w, http.StatusBadRequest, "Question is required")
		return
	}

	qa, err := h.qaService.Ask(r.Context(), req.Question, baseURL(r))
	if err != nil {
		if errors.Is(err, core.ErrEmptyQuestion) {
			respondError(w, http.StatusBadRequest, "Question is required")
			return
		}
		h.log.Error().Err(err).Str("subject", subject(r)).Msg("Failed to answer question")
		respondError(w, http.StatusInternalServerError, "Failed to answer question")
		return
	}

	respondJSON(w, http.StatusOK, AskResponse{Answer: qa.Answer, Images: qa.Images})
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	qas, err := h.qaService.History(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read history")
		respondError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	respondJSON(w, http.StatusOK, qas)
}

func (h *APIHandler) DeleteHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.qaService.ClearHistory(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear history")
		respondError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	h.log.Info().Str("subject", subject(r)).Msg("History cleared")
	respondJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

func subject(r *http.Request) string {
	s, _ := r.Context().Value(subjectKey).(string)
	return s
}

// baseURL is the scheme and host the client used to reach us, for building image links.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
