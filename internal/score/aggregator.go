// Package score computes the continuous score and course progression for a
// (student, course) pair from the section progress store and the activity
// score ledger.
package score

import (
	"fmt"
	"math"

	"github.com/avelot/tutoria/internal/model"
	"github.com/avelot/tutoria/internal/store"
)

// Weighting policy for the continuous score. The two regimes are mutually
// exclusive: when no exam grade exists, the exam's 30% is redistributed
// across the remaining signals instead of zero-filling the component.
const (
	examScaleMax = 6.0

	withExamQuizWeight     = 0.25
	withExamExerciseWeight = 0.25
	withExamAIWeight       = 0.20
	withExamExamWeight     = 0.30

	noExamQuizWeight     = 0.35
	noExamExerciseWeight = 0.35
	noExamAIWeight       = 0.30
)

// Aggregator recomputes score snapshots from source records. It never
// increments running totals, which is what makes concurrent duplicate
// triggers self-correcting: any writer produces the same value.
type Aggregator struct {
	store *store.Store
}

// New creates an Aggregator.
func New(s *store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Recompute derives the StudentCourseScore for (student, course) from all
// current section progress rows and ledger entries, upserts it, and returns
// the persisted row. Pure with respect to store contents: calling it twice
// with no intervening writes yields an identical row.
//
// A student with no signals of any kind gets no row at all; absence, not a
// zeroed value, represents "not yet assessed". An existing row (e.g. one
// created by an exam grade entry) is always recomputed.
func (a *Aggregator) Recompute(studentID, courseID int64) (*model.StudentCourseScore, error) {
	progress, err := a.store.ListCourseProgress(studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	entries, err := a.store.ListActivityScores(studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	existing, err := a.store.GetStudentCourseScore(studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get score row: %w", err)
	}

	quizAvg, quizCount := sectionAverage(progress, model.SectionQuiz)
	exAvg, exCount := sectionAverage(progress, model.SectionExercise)
	aiAvg, aiCount := comprehensionAverage(entries)

	if quizCount == 0 && exCount == 0 && aiCount == 0 && existing == nil {
		return nil, nil
	}

	var examGrade *float64
	if existing != nil {
		examGrade = existing.ExamGrade
	}

	sc := model.StudentCourseScore{
		StudentID:              studentID,
		CourseID:               courseID,
		QuizAverage:            quizAvg,
		ExerciseAverage:        exAvg,
		AIComprehensionAverage: aiAvg,
		ContinuousScore:        continuousScore(quizAvg, exAvg, aiAvg, examGrade),
		QuizCount:              quizCount,
		ExerciseCount:          exCount,
		AISessionCount:         aiCount,
	}

	if err := a.store.UpsertDerivedScore(sc); err != nil {
		return nil, fmt.Errorf("upsert score: %w", err)
	}
	return a.store.GetStudentCourseScore(studentID, courseID)
}

// RecomputeProgression overwrites the CourseProgression snapshot: completed
// sections over all sections of the course, lesson and video sections
// included. This is a coverage metric, deliberately decoupled from the
// competency score above (different denominators).
func (a *Aggregator) RecomputeProgression(studentID, courseID int64) (*model.CourseProgression, error) {
	total, err := a.store.CountSections(courseID)
	if err != nil {
		return nil, fmt.Errorf("count sections: %w", err)
	}
	completed, err := a.store.CountCompletedSections(studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("count completed sections: %w", err)
	}

	// A course with no sections yet is 0% covered, not an error.
	pct := 0.0
	if total > 0 {
		pct = round2(float64(completed) / float64(total) * 100)
	}

	p := model.CourseProgression{
		StudentID:  studentID,
		CourseID:   courseID,
		Percentage: pct,
	}
	if err := a.store.UpsertCourseProgression(p); err != nil {
		return nil, fmt.Errorf("upsert progression: %w", err)
	}
	return a.store.GetCourseProgression(studentID, courseID)
}

// sectionAverage returns the mean score and count over completed-or-graded
// sections of the given type. An empty group averages to 0, not null, so the
// weighted formula stays defined.
func sectionAverage(rows []model.ProgressRow, t model.SectionType) (float64, int) {
	var sum float64
	var count int
	for _, r := range rows {
		if r.SectionType != t || !r.Status.Done() || r.Score == nil {
			continue
		}
		sum += *r.Score
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return round2(sum / float64(count)), count
}

// comprehensionAverage averages the ledger's comprehension scores. This is
// deliberately NOT the blended final_score: the course-level signal tracks
// understanding specifically, while final_score also rewards accuracy and
// autonomy per session. Keep the separation; do not unify the two.
func comprehensionAverage(entries []model.ActivityScoreEntry) (float64, int) {
	if len(entries) == 0 {
		return 0, 0
	}
	var sum float64
	for _, e := range entries {
		sum += e.ComprehensionScore
	}
	return round2(sum / float64(len(entries))), len(entries)
}

func continuousScore(quizAvg, exAvg, aiAvg float64, examGrade *float64) float64 {
	if examGrade != nil {
		examPct := *examGrade / examScaleMax * 100
		return round2(quizAvg*withExamQuizWeight +
			exAvg*withExamExerciseWeight +
			aiAvg*withExamAIWeight +
			examPct*withExamExamWeight)
	}
	return round2(quizAvg*noExamQuizWeight +
		exAvg*noExamExerciseWeight +
		aiAvg*noExamAIWeight)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
