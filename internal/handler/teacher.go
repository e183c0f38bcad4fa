package handler

import (
	"net/http"
	"time"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/model"
)

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Subject string `json:"subject"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Title == "" {
		respondDomainError(w, r, apperr.Validationf("title", "empty"))
		return
	}

	id, err := h.store.CreateCourse(model.Course{Title: req.Title, Subject: req.Subject})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.store.ListCourses()
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func (h *Handler) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	courseID, err := urlInt64(r, "courseID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req struct {
		Title    string            `json:"title"`
		Type     model.SectionType `json:"type"`
		Position int               `json:"position"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	switch req.Type {
	case model.SectionLesson, model.SectionVideo, model.SectionQuiz, model.SectionExercise:
	default:
		respondDomainError(w, r, apperr.Validationf("type", "unknown section type %q", req.Type))
		return
	}

	course, err := h.store.GetCourse(courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if course == nil {
		respondError(w, http.StatusNotFound, "course not found")
		return
	}

	id, err := h.store.CreateSection(model.Section{
		CourseID: courseID,
		Title:    req.Title,
		Type:     req.Type,
		Position: req.Position,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	courseID, err := urlInt64(r, "courseID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	sections, err := h.store.ListSections(courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	sectionID, err := urlInt64(r, "sectionID")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req struct {
		StudentID int64 `json:"student_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	existing, err := h.store.GetAssignment(sectionID, req.StudentID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if existing != nil {
		respondJSON(w, http.StatusOK, existing)
		return
	}

	id, err := h.store.CreateAssignment(model.Assignment{
		SectionID: sectionID,
		StudentID: req.StudentID,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// handleSetExamGrade records a teacher-entered exam grade (0-6 scale) and
// recomputes so the continuous score switches to the with-exam regime.
func (h *Handler) handleSetExamGrade(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Grade   float64    `json:"grade"`
		Date    *time.Time `json:"date"`
		Comment string     `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Grade < 0 || req.Grade > 6 {
		respondDomainError(w, r, apperr.Validationf("grade", "must be within [0,6]"))
		return
	}
	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	if err := h.store.SetExamGrade(studentID, courseID, req.Grade, date, req.Comment); err != nil {
		respondDomainError(w, r, err)
		return
	}
	sc, err := h.agg.Recompute(studentID, courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"score": sc})
}

func (h *Handler) handleSetFinalGrade(w http.ResponseWriter, r *http.Request) {
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

	var req struct {
		Grade float64 `json:"grade"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if req.Grade < 0 || req.Grade > 6 {
		respondDomainError(w, r, apperr.Validationf("grade", "must be within [0,6]"))
		return
	}

	existing, err := h.store.GetStudentCourseScore(studentID, courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "no score record for student in course")
		return
	}

	if err := h.store.SetFinalGrade(studentID, courseID, req.Grade); err != nil {
		respondDomainError(w, r, err)
		return
	}
	sc, err := h.store.GetStudentCourseScore(studentID, courseID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"score": sc})
}
