package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/evaluation"
	"github.com/avelot/tutoria/internal/grading"
	"github.com/avelot/tutoria/internal/model"
	"github.com/avelot/tutoria/internal/score"
	"github.com/avelot/tutoria/internal/store"
)

// flakyCompleter fails the first failures calls, then returns reply.
type flakyCompleter struct {
	reply    string
	failures int
	calls    int
}

func (f *flakyCompleter) Complete(_ context.Context, _ string, _ []model.SessionMessage, _ int, _ float32) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", apperr.ErrProviderUnavailable
	}
	return f.reply, nil
}

func newTestHandler(t *testing.T, llm *flakyCompleter) (*Handler, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	agg := score.New(s)
	ev := evaluation.New(s, llm, agg, 1024)
	as := grading.New(llm, 1024)
	return New(s, ev, agg, as, model.Config{Lang: "en"}), s
}

func createUser(t *testing.T, s *store.Store, username string, role model.UserRole) *model.User {
	t.Helper()
	id, err := s.CreateUser(model.User{Username: username, DisplayName: username, Role: role, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := s.GetUserByID(id)
	if err != nil || u == nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	return u
}

// authedRequest builds a request with the user and URL params already in
// context, bypassing the auth middleware.
func authedRequest(t *testing.T, method, target, body string, user *model.User, params map[string]string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = model.ContextWithUser(ctx, user)
	return req.WithContext(ctx)
}

func TestRecordSectionScoreTeacherOverride(t *testing.T) {
	h, s := newTestHandler(t, &flakyCompleter{})
	teacher := createUser(t, s, "teacher", model.UserRoleTeacher)
	student := createUser(t, s, "student", model.UserRoleStudent)

	courseID, err := s.CreateCourse(model.Course{Title: "Algebra", Subject: "math"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	sectionID, err := s.CreateSection(model.Section{CourseID: courseID, Title: "Quiz 1", Type: model.SectionQuiz})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	body := `{"student_id": ` + strconv.FormatInt(student.ID, 10) + `, "score": 95, "status": "graded"}`
	req := authedRequest(t, http.MethodPost, "/api/sections/1/score", body, teacher,
		map[string]string{"sectionID": strconv.FormatInt(sectionID, 10)})
	w := httptest.NewRecorder()
	h.handleRecordSectionScore(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The override lands on the student's record, not the teacher's.
	a, err := s.GetAssignment(sectionID, student.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a == nil {
		t.Fatal("expected assignment for the student")
	}
	p, err := s.GetSectionProgress(a.ID)
	if err != nil {
		t.Fatalf("GetSectionProgress: %v", err)
	}
	if p == nil || p.Status != model.ProgressGraded {
		t.Fatalf("expected graded progress for student, got %+v", p)
	}
	if p.Score == nil || *p.Score != 95 {
		t.Errorf("expected score 95, got %v", p.Score)
	}

	teacherAssignment, err := s.GetAssignment(sectionID, teacher.ID)
	if err != nil {
		t.Fatalf("GetAssignment for teacher: %v", err)
	}
	if teacherAssignment != nil {
		t.Errorf("expected no assignment for the teacher, got %+v", teacherAssignment)
	}

	// And the recompute ran for the student.
	sc, err := s.GetStudentCourseScore(student.ID, courseID)
	if err != nil {
		t.Fatalf("GetStudentCourseScore: %v", err)
	}
	if sc == nil || sc.QuizAverage != 95 {
		t.Errorf("expected student quiz average 95, got %+v", sc)
	}
}

func TestRecordSectionScoreStudentCannotOverride(t *testing.T) {
	h, s := newTestHandler(t, &flakyCompleter{})
	student := createUser(t, s, "student", model.UserRoleStudent)
	other := createUser(t, s, "other", model.UserRoleStudent)

	courseID, err := s.CreateCourse(model.Course{Title: "Algebra", Subject: "math"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	sectionID, err := s.CreateSection(model.Section{CourseID: courseID, Title: "Quiz 1", Type: model.SectionQuiz})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	body := `{"student_id": ` + strconv.FormatInt(other.ID, 10) + `, "score": 100}`
	req := authedRequest(t, http.MethodPost, "/api/sections/1/score", body, student,
		map[string]string{"sectionID": strconv.FormatInt(sectionID, 10)})
	w := httptest.NewRecorder()
	h.handleRecordSectionScore(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
	a, err := s.GetAssignment(sectionID, other.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a != nil {
		t.Errorf("expected no assignment for the targeted student, got %+v", a)
	}
}

func TestRecordSectionScoreDefaultsToCaller(t *testing.T) {
	h, s := newTestHandler(t, &flakyCompleter{})
	student := createUser(t, s, "student", model.UserRoleStudent)

	courseID, err := s.CreateCourse(model.Course{Title: "Algebra", Subject: "math"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	sectionID, err := s.CreateSection(model.Section{CourseID: courseID, Title: "Quiz 1", Type: model.SectionQuiz})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	req := authedRequest(t, http.MethodPost, "/api/sections/1/score", `{"score": 60}`, student,
		map[string]string{"sectionID": strconv.FormatInt(sectionID, 10)})
	w := httptest.NewRecorder()
	h.handleRecordSectionScore(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	a, err := s.GetAssignment(sectionID, student.ID)
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a == nil {
		t.Fatal("expected assignment for the caller")
	}
}

func TestEvaluateSessionRetriesProviderFailure(t *testing.T) {
	llm := &flakyCompleter{
		failures: 1,
		reply:    `{"comprehension": 80, "accuracy": 70, "autonomy": 60, "strengths": [], "weaknesses": [], "recommendation": "ok"}`,
	}
	h, s := newTestHandler(t, llm)
	student := createUser(t, s, "student", model.UserRoleStudent)

	courseID, err := s.CreateCourse(model.Course{Title: "Algebra", Subject: "math"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	err = s.CreateTutoringSession(model.TutoringSession{
		ID: "sess-1", StudentID: student.ID, CourseID: courseID, ActivityType: model.ActivityQuiz,
	})
	if err != nil {
		t.Fatalf("CreateTutoringSession: %v", err)
	}
	if _, err := s.AddSessionMessage(model.SessionMessage{SessionID: "sess-1", Role: model.RoleStudent, Content: "3/4"}); err != nil {
		t.Fatalf("AddSessionMessage: %v", err)
	}
	if _, err := s.CompleteTutoringSession("sess-1"); err != nil {
		t.Fatalf("CompleteTutoringSession: %v", err)
	}

	oldDelay := providerRetryDelay
	providerRetryDelay = 0
	t.Cleanup(func() { providerRetryDelay = oldDelay })

	req := authedRequest(t, http.MethodPost, "/api/sessions/sess-1/evaluate", "", student,
		map[string]string{"sessionID": "sess-1"})
	w := httptest.NewRecorder()
	h.handleEvaluateSession(w, req)

	// First attempt hits the provider failure; the single retry succeeds.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d: %s", w.Code, w.Body.String())
	}
	if llm.calls != 2 {
		t.Errorf("expected 2 LLM calls, got %d", llm.calls)
	}

	var resp struct {
		Evaluation *model.ActivityScoreEntry `json:"evaluation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Evaluation == nil || resp.Evaluation.FinalScore != 72.0 {
		t.Errorf("expected evaluation with final score 72.0, got %+v", resp.Evaluation)
	}

	sess, _ := s.GetTutoringSession("sess-1")
	if sess.Status != model.SessionEvaluated {
		t.Errorf("expected status evaluated, got %q", sess.Status)
	}
}
