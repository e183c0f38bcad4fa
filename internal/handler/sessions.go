package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avelot/tutoria/internal/apperr"
	appI18n "github.com/avelot/tutoria/internal/i18n"
	"github.com/avelot/tutoria/internal/model"
)

// providerRetryDelay is the backoff before the single provider-failure retry
// in handleEvaluateSession.
var providerRetryDelay = 2 * time.Second

type createSessionRequest struct {
	CourseID     int64              `json:"course_id"`
	ActivityType model.ActivityType `json:"activity_type"`
	Context      string             `json:"context"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !req.ActivityType.Valid() {
		respondDomainError(w, r, apperr.Validationf("activity_type", "unknown type %q", req.ActivityType))
		return
	}
	course, err := h.store.GetCourse(req.CourseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	sess := model.TutoringSession{
		ID:           uuid.NewString(),
		StudentID:    user.ID,
		CourseID:     req.CourseID,
		ActivityType: req.ActivityType,
		Context:      req.Context,
	}
	if err := h.store.CreateTutoringSession(sess); err != nil {
		respondDomainError(w, r, err)
		return
	}
	created, err := h.store.GetTutoringSession(sess.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sess, err := h.store.GetTutoringSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if !canViewStudent(user, sess.StudentID) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	resp := map[string]any{"session": sess}
	switch sess.Status {
	case model.SessionEvaluated:
		entry, err := h.evaluator.ExistingResult(sess.ID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		resp["evaluation"] = entry
	case model.SessionCompleted, model.SessionEvaluating, model.SessionEvaluationFailed:
		// Pending and failed evaluations both read as "not yet evaluated";
		// failure details stay in the logs, not in student responses.
		resp["message"] = appI18n.T(r.Context(), "NotYetEvaluated")
	}
	respondJSON(w, http.StatusOK, resp)
}

type addMessageRequest struct {
	Role    model.MessageRole `json:"role"`
	Content string            `json:"content"`
}

func (h *Handler) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req addMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Content == "" {
		respondDomainError(w, r, apperr.Validationf("content", "empty"))
		return
	}
	switch req.Role {
	case model.RoleStudent, model.RoleAssistant:
	default:
		respondDomainError(w, r, apperr.Validationf("role", "must be student or assistant"))
		return
	}

	sess, err := h.store.GetTutoringSession(sessionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.StudentID != user.ID && user.Role == model.UserRoleStudent {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	if sess.Status != model.SessionOpen {
		respondDomainError(w, r, apperr.Validationf("session", "not open"))
		return
	}

	id, err := h.store.AddSessionMessage(model.SessionMessage{
		SessionID: sessionID,
		Role:      req.Role,
		Content:   req.Content,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.store.GetTutoringSession(sessionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if sess.StudentID != user.ID && user.Role == model.UserRoleStudent {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	done, err := h.store.CompleteTutoringSession(sessionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !done && sess.Status == model.SessionOpen {
		respondDomainError(w, r, apperr.Validationf("session", "could not complete"))
		return
	}
	// Completing an already-completed session is a no-op, not an error:
	// the status-transition webhook may fire more than once.
	respondJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// handleEvaluateSession triggers the evaluation pipeline. The endpoint is
// idempotent: when the session is already evaluated it returns the existing
// ledger entry instead of erroring, because the completion webhook that calls
// it may fire more than once.
func (h *Handler) handleEvaluateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	entry, err := h.evaluator.Evaluate(r.Context(), sessionID)
	if errors.Is(err, apperr.ErrProviderUnavailable) {
		// One retry with backoff. The failed attempt released the claim back
		// to completed and the unique ledger constraint makes a second
		// attempt safe.
		time.Sleep(providerRetryDelay)
		entry, err = h.evaluator.Evaluate(r.Context(), sessionID)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateEvaluation) {
			existing, lookupErr := h.evaluator.ExistingResult(sessionID)
			if lookupErr != nil {
				respondDomainError(w, r, lookupErr)
				return
			}
			if existing == nil {
				// Claimed by a concurrent evaluation still in flight.
				respondJSON(w, http.StatusAccepted, map[string]string{
					"message": appI18n.T(r.Context(), "EvaluationPending"),
				})
				return
			}
			respondJSON(w, http.StatusOK, map[string]any{"evaluation": existing})
			return
		}
		if pe := apperr.AsParseError(err); pe != nil {
			respondError(w, http.StatusBadGateway, appI18n.T(r.Context(), "EvaluationFailed"))
			return
		}
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"evaluation": entry})
}
