package store

import (
	"database/sql"
	"time"

	"github.com/avelot/tutoria/internal/model"
)

// UpsertDerivedScore writes the aggregator's derived fields for a (student,
// course) pair. Teacher-entered fields (exam, final grade) are never touched
// here. The update is skipped entirely when nothing changed, so redundant
// recomputes leave the row byte-identical, timestamp included.
func (s *Store) UpsertDerivedScore(sc model.StudentCourseScore) error {
	_, err := s.db.Exec(
		`INSERT INTO student_course_scores
		   (student_id, course_id, quiz_average, exercise_average, ai_comprehension_average,
		    continuous_score, quiz_count, exercise_count, ai_session_count, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id, course_id) DO UPDATE SET
		   quiz_average = excluded.quiz_average,
		   exercise_average = excluded.exercise_average,
		   ai_comprehension_average = excluded.ai_comprehension_average,
		   continuous_score = excluded.continuous_score,
		   quiz_count = excluded.quiz_count,
		   exercise_count = excluded.exercise_count,
		   ai_session_count = excluded.ai_session_count,
		   updated_at = excluded.updated_at
		 WHERE quiz_average != excluded.quiz_average
		    OR exercise_average != excluded.exercise_average
		    OR ai_comprehension_average != excluded.ai_comprehension_average
		    OR continuous_score != excluded.continuous_score
		    OR quiz_count != excluded.quiz_count
		    OR exercise_count != excluded.exercise_count
		    OR ai_session_count != excluded.ai_session_count`,
		sc.StudentID, sc.CourseID, sc.QuizAverage, sc.ExerciseAverage, sc.AIComprehensionAverage,
		sc.ContinuousScore, sc.QuizCount, sc.ExerciseCount, sc.AISessionCount, time.Now(),
	)
	return err
}

// GetStudentCourseScore returns the score row for (student, course), or nil
// when the student has no signals yet. Absence, not a zeroed row, represents
// "not yet assessed".
func (s *Store) GetStudentCourseScore(studentID, courseID int64) (*model.StudentCourseScore, error) {
	var sc model.StudentCourseScore
	err := s.db.QueryRow(
		`SELECT id, student_id, course_id, quiz_average, exercise_average, ai_comprehension_average,
		        continuous_score, quiz_count, exercise_count, ai_session_count,
		        exam_grade, exam_date, exam_comment, final_grade, updated_at
		 FROM student_course_scores WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	).Scan(&sc.ID, &sc.StudentID, &sc.CourseID, &sc.QuizAverage, &sc.ExerciseAverage, &sc.AIComprehensionAverage,
		&sc.ContinuousScore, &sc.QuizCount, &sc.ExerciseCount, &sc.AISessionCount,
		&sc.ExamGrade, &sc.ExamDate, &sc.ExamComment, &sc.FinalGrade, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// SetExamGrade records a teacher-entered exam grade, creating the score row
// when none exists yet. The caller must recompute afterwards so the
// continuous score switches to the with-exam weighting regime.
func (s *Store) SetExamGrade(studentID, courseID int64, grade float64, date time.Time, comment string) error {
	_, err := s.db.Exec(
		`INSERT INTO student_course_scores
		   (student_id, course_id, exam_grade, exam_date, exam_comment, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(student_id, course_id) DO UPDATE SET
		   exam_grade = excluded.exam_grade,
		   exam_date = excluded.exam_date,
		   exam_comment = excluded.exam_comment,
		   updated_at = excluded.updated_at`,
		studentID, courseID, grade, date, comment, time.Now(),
	)
	return err
}

// SetFinalGrade records the teacher-entered final grade for an existing row.
func (s *Store) SetFinalGrade(studentID, courseID int64, grade float64) error {
	_, err := s.db.Exec(
		`UPDATE student_course_scores SET final_grade = ?, updated_at = ?
		 WHERE student_id = ? AND course_id = ?`,
		grade, time.Now(), studentID, courseID,
	)
	return err
}

// UpsertCourseProgression overwrites the progression snapshot for (student, course).
func (s *Store) UpsertCourseProgression(p model.CourseProgression) error {
	_, err := s.db.Exec(
		`INSERT INTO course_progressions (student_id, course_id, percentage, last_activity_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(student_id, course_id) DO UPDATE SET
		   percentage = excluded.percentage,
		   last_activity_at = excluded.last_activity_at`,
		p.StudentID, p.CourseID, p.Percentage, time.Now(),
	)
	return err
}

// GetCourseProgression returns the progression row for (student, course), or nil.
func (s *Store) GetCourseProgression(studentID, courseID int64) (*model.CourseProgression, error) {
	var p model.CourseProgression
	err := s.db.QueryRow(
		`SELECT id, student_id, course_id, percentage, last_activity_at
		 FROM course_progressions WHERE student_id = ? AND course_id = ?`,
		studentID, courseID,
	).Scan(&p.ID, &p.StudentID, &p.CourseID, &p.Percentage, &p.LastActivityAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
