// Package handler exposes the assessment core as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/evaluation"
	"github.com/avelot/tutoria/internal/grading"
	appI18n "github.com/avelot/tutoria/internal/i18n"
	"github.com/avelot/tutoria/internal/model"
	"github.com/avelot/tutoria/internal/score"
	"github.com/avelot/tutoria/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	evaluator *evaluation.Evaluator
	agg       *score.Aggregator
	assistant *grading.Assistant
	config    model.Config
}

// New creates a new Handler.
func New(s *store.Store, ev *evaluation.Evaluator, agg *score.Aggregator, as *grading.Assistant, cfg model.Config) *Handler {
	return &Handler{store: s, evaluator: ev, agg: agg, assistant: as, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/sections/{sectionID}/score", h.handleRecordSectionScore)
		r.Post("/api/exercises/grade", h.handleGradeExercises)

		r.Post("/api/sessions", h.handleCreateSession)
		r.Post("/api/sessions/{sessionID}/messages", h.handleAddMessage)
		r.Post("/api/sessions/{sessionID}/complete", h.handleCompleteSession)
		r.Post("/api/sessions/{sessionID}/evaluate", h.handleEvaluateSession)
		r.Get("/api/sessions/{sessionID}", h.handleGetSession)

		r.Get("/api/students/{studentID}/courses/{courseID}/score", h.handleGetCourseScore)
		r.Get("/api/students/{studentID}/courses/{courseID}/progression", h.handleGetProgression)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Post("/api/courses", h.handleCreateCourse)
			r.Get("/api/courses", h.handleListCourses)
			r.Post("/api/courses/{courseID}/sections", h.handleCreateSection)
			r.Get("/api/courses/{courseID}/sections", h.handleListSections)
			r.Post("/api/sections/{sectionID}/assignments", h.handleCreateAssignment)
			r.Post("/api/students/{studentID}/courses/{courseID}/exam", h.handleSetExamGrade)
			r.Post("/api/students/{studentID}/courses/{courseID}/final", h.handleSetFinalGrade)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Post("/api/admin/users/{userID}/toggle", h.handleToggleUser)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validationf("body", "malformed json: %v", err)
	}
	return nil
}

// respondDomainError maps the error taxonomy to HTTP statuses.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, appI18n.T(r.Context(), "EvaluationUnavailable"))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func urlInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, apperr.Validationf(name, "not a number")
	}
	return v, nil
}

// canViewStudent reports whether the caller may read studentID's records.
// Students see only their own; teachers and admins see everyone.
func canViewStudent(u *model.User, studentID int64) bool {
	if u == nil {
		return false
	}
	if u.Role == model.UserRoleStudent {
		return u.ID == studentID
	}
	return true
}

type sectionScoreRequest struct {
	StudentID    *int64                `json:"student_id"`
	Score        *float64              `json:"score"`
	TimeSpentSec *int                  `json:"time_spent_sec"`
	Status       *model.ProgressStatus `json:"status"`
}

// handleRecordSectionScore upserts a section score and then explicitly
// recomputes the course score and progression. The store never triggers
// recomputation on its own. The score is recorded for the caller unless a
// teacher or admin names another student, which is how a manual override
// (graded status) reaches the target student's record.
func (h *Handler) handleRecordSectionScore(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sectionID, err := urlInt64(r, "sectionID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	var req sectionScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Score != nil && (*req.Score < 0 || *req.Score > 100) {
		respondDomainError(w, r, apperr.Validationf("score", "must be within [0,100]"))
		return
	}
	studentID := user.ID
	if req.StudentID != nil && *req.StudentID != user.ID {
		if user.Role == model.UserRoleStudent {
			respondError(w, http.StatusForbidden, "students may only record their own scores")
			return
		}
		studentID = *req.StudentID
	}
	status := model.ProgressCompleted
	if req.Status != nil {
		status = *req.Status
	}
	switch status {
	case model.ProgressNotStarted, model.ProgressInProgress, model.ProgressCompleted, model.ProgressGraded:
	default:
		respondDomainError(w, r, apperr.Validationf("status", "unknown status %q", status))
		return
	}
	if status == model.ProgressGraded && user.Role == model.UserRoleStudent {
		respondError(w, http.StatusForbidden, "only teachers may set graded status")
		return
	}

	section, err := h.store.GetSection(sectionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if section == nil {
		respondError(w, http.StatusNotFound, "section not found")
		return
	}

	assignment, err := h.store.GetOrCreateAssignment(sectionID, studentID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if assignment.Origin == model.AssignmentAutoCreated {
		slog.Info("synthesized self-assignment",
			"section_id", sectionID, "student_id", studentID, "recorded_by", user.ID)
	}

	progress := model.SectionProgress{
		AssignmentID: assignment.ID,
		Status:       status,
		Score:        req.Score,
		TimeSpentSec: req.TimeSpentSec,
	}
	if status.Done() {
		now := time.Now()
		progress.CompletedAt = &now
	}
	if err := h.store.UpsertSectionProgress(progress); err != nil {
		respondDomainError(w, r, err)
		return
	}

	sc, err := h.agg.Recompute(studentID, section.CourseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	prog, err := h.agg.RecomputeProgression(studentID, section.CourseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"score":       sc,
		"progression": prog,
	})
}

func (h *Handler) handleGetCourseScore(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	studentID, err := urlInt64(r, "studentID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	courseID, err := urlInt64(r, "courseID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !canViewStudent(user, studentID) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	sc, err := h.store.GetStudentCourseScore(studentID, courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if sc == nil {
		// No signals yet: absence is not an error from the student's side.
		respondJSON(w, http.StatusOK, map[string]any{
			"score":   nil,
			"message": appI18n.T(r.Context(), "NotYetAssessed"),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"score": sc})
}

func (h *Handler) handleGetProgression(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	studentID, err := urlInt64(r, "studentID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	courseID, err := urlInt64(r, "courseID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if !canViewStudent(user, studentID) {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	prog, err := h.store.GetCourseProgression(studentID, courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if prog == nil {
		prog = &model.CourseProgression{StudentID: studentID, CourseID: courseID, Percentage: 0}
	}
	respondJSON(w, http.StatusOK, map[string]any{"progression": prog})
}

func (h *Handler) handleGradeExercises(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []grading.AnswerInput `json:"answers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	result, err := h.assistant.Grade(r.Context(), req.Answers)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
