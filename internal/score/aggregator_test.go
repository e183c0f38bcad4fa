package score

import (
	"testing"
	"time"

	"github.com/avelot/tutoria/internal/model"
	"github.com/avelot/tutoria/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createCourse(t *testing.T, s *store.Store) int64 {
	t.Helper()
	id, err := s.CreateCourse(model.Course{Title: "Algebra", Subject: "math"})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	return id
}

// recordScore creates a section of the given type, assigns it to the student,
// and records a completed score for it.
func recordScore(t *testing.T, s *store.Store, courseID, studentID int64, typ model.SectionType, score float64) {
	t.Helper()
	secID, err := s.CreateSection(model.Section{CourseID: courseID, Title: "S", Type: typ})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	a, err := s.GetOrCreateAssignment(secID, studentID)
	if err != nil {
		t.Fatalf("GetOrCreateAssignment: %v", err)
	}
	now := time.Now()
	err = s.UpsertSectionProgress(model.SectionProgress{
		AssignmentID: a.ID,
		Status:       model.ProgressCompleted,
		Score:        &score,
		CompletedAt:  &now,
	})
	if err != nil {
		t.Fatalf("UpsertSectionProgress: %v", err)
	}
}

// recordLedgerEntry appends one evaluated-session entry with the given
// comprehension score.
func recordLedgerEntry(t *testing.T, s *store.Store, courseID, studentID int64, sessionID string, comprehension float64) {
	t.Helper()
	err := s.CreateTutoringSession(model.TutoringSession{
		ID: sessionID, StudentID: studentID, CourseID: courseID, ActivityType: model.ActivityQuiz,
	})
	if err != nil {
		t.Fatalf("CreateTutoringSession: %v", err)
	}
	_, err = s.InsertActivityScore(model.ActivityScoreEntry{
		SessionID:          sessionID,
		StudentID:          studentID,
		CourseID:           courseID,
		ActivityType:       model.ActivityQuiz,
		ComprehensionScore: comprehension,
		AccuracyScore:      50,
		AutonomyScore:      50,
		FinalScore:         50,
	})
	if err != nil {
		t.Fatalf("InsertActivityScore: %v", err)
	}
}

func TestRecomputeWithoutExam(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	recordScore(t, s, courseID, 1, model.SectionQuiz, 80)
	recordScore(t, s, courseID, 1, model.SectionExercise, 60)
	recordLedgerEntry(t, s, courseID, 1, "sess-1", 70)

	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if sc.QuizAverage != 80 || sc.ExerciseAverage != 60 || sc.AIComprehensionAverage != 70 {
		t.Errorf("unexpected averages: %+v", sc)
	}
	// 80*0.35 + 60*0.35 + 70*0.30 = 70.0
	if sc.ContinuousScore != 70.0 {
		t.Errorf("expected continuous score 70.0, got %f", sc.ContinuousScore)
	}
	if sc.QuizCount != 1 || sc.ExerciseCount != 1 || sc.AISessionCount != 1 {
		t.Errorf("unexpected counts: %+v", sc)
	}
}

func TestRecomputeWithExam(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	recordScore(t, s, courseID, 1, model.SectionQuiz, 80)
	recordScore(t, s, courseID, 1, model.SectionExercise, 60)
	recordLedgerEntry(t, s, courseID, 1, "sess-1", 70)

	if err := s.SetExamGrade(1, courseID, 5.0, time.Now(), ""); err != nil {
		t.Fatalf("SetExamGrade: %v", err)
	}

	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	// 80*0.25 + 60*0.25 + 70*0.20 + (5/6*100)*0.30 = 20 + 15 + 14 + 25 = 74.0
	if sc.ContinuousScore != 74.0 {
		t.Errorf("expected continuous score 74.0, got %f", sc.ContinuousScore)
	}
	if sc.ExamGrade == nil || *sc.ExamGrade != 5.0 {
		t.Errorf("expected exam grade preserved, got %+v", sc.ExamGrade)
	}
}

func TestRecomputeNoSignals(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	// No signals at all: no row is created.
	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if sc != nil {
		t.Fatalf("expected nil score with no signals, got %+v", sc)
	}
	row, err := s.GetStudentCourseScore(1, courseID)
	if err != nil {
		t.Fatalf("GetStudentCourseScore: %v", err)
	}
	if row != nil {
		t.Errorf("expected no persisted row, got %+v", row)
	}
}

func TestRecomputeExamOnly(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	// A row that exists (exam entered first) is recomputed even with zero
	// derived signals.
	if err := s.SetExamGrade(1, courseID, 4.5, time.Now(), ""); err != nil {
		t.Fatalf("SetExamGrade: %v", err)
	}
	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if sc == nil {
		t.Fatal("expected a score row for exam-only student")
	}
	// (4.5/6*100)*0.30 = 22.5
	if sc.ContinuousScore != 22.5 {
		t.Errorf("expected continuous score 22.5, got %f", sc.ContinuousScore)
	}
}

func TestZeroScoreIsNotAbsence(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	// A failed quiz is a real signal: average 0 with count 1.
	recordScore(t, s, courseID, 1, model.SectionQuiz, 0)

	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if sc == nil {
		t.Fatal("expected a score row for a zero-score quiz")
	}
	if sc.QuizAverage != 0 || sc.QuizCount != 1 {
		t.Errorf("expected quiz average 0 with count 1, got %+v", sc)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	recordScore(t, s, courseID, 1, model.SectionQuiz, 80)

	first, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	second, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute again: %v", err)
	}
	if second.ContinuousScore != first.ContinuousScore {
		t.Errorf("recompute changed score: %f vs %f", first.ContinuousScore, second.ContinuousScore)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("no-op recompute changed updated_at: %v vs %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestProgressionCountsAllSectionTypes(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	// 10 sections, 3 completed lessons. Lessons carry no score, but they
	// count toward progression.
	for i := 0; i < 10; i++ {
		secID, err := s.CreateSection(model.Section{CourseID: courseID, Title: "L", Type: model.SectionLesson})
		if err != nil {
			t.Fatalf("CreateSection: %v", err)
		}
		if i >= 3 {
			continue
		}
		a, err := s.GetOrCreateAssignment(secID, 1)
		if err != nil {
			t.Fatalf("GetOrCreateAssignment: %v", err)
		}
		err = s.UpsertSectionProgress(model.SectionProgress{
			AssignmentID: a.ID, Status: model.ProgressCompleted,
		})
		if err != nil {
			t.Fatalf("UpsertSectionProgress: %v", err)
		}
	}

	p, err := agg.RecomputeProgression(1, courseID)
	if err != nil {
		t.Fatalf("RecomputeProgression: %v", err)
	}
	if p.Percentage != 30.0 {
		t.Errorf("expected progression 30.0, got %f", p.Percentage)
	}

	// Progression moves independently of the score: no score row exists.
	sc, err := s.GetStudentCourseScore(1, courseID)
	if err != nil {
		t.Fatalf("GetStudentCourseScore: %v", err)
	}
	if sc != nil {
		t.Errorf("expected no score row for lesson-only progress, got %+v", sc)
	}
}

func TestProgressionEmptyCourse(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	p, err := agg.RecomputeProgression(1, courseID)
	if err != nil {
		t.Fatalf("RecomputeProgression: %v", err)
	}
	if p.Percentage != 0 {
		t.Errorf("expected 0%% for empty course, got %f", p.Percentage)
	}
}

func TestContinuousScoreRounding(t *testing.T) {
	s := newTestStore(t)
	agg := New(s)
	courseID := createCourse(t, s)

	// Two quizzes averaging to a repeating decimal: (70+65)/2 = 67.5,
	// 67.5*0.35 = 23.625 → score rounds to 2 decimals.
	recordScore(t, s, courseID, 1, model.SectionQuiz, 70)
	recordScore(t, s, courseID, 1, model.SectionQuiz, 65)

	sc, err := agg.Recompute(1, courseID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if sc.QuizAverage != 67.5 {
		t.Errorf("expected quiz average 67.5, got %f", sc.QuizAverage)
	}
	if sc.ContinuousScore != 23.63 {
		t.Errorf("expected continuous score 23.63, got %f", sc.ContinuousScore)
	}
}
