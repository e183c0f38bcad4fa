package model

import "time"

// UserRole represents a user's access level (distinct from MessageRole which is for chat).
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SectionType classifies the smallest gradable unit of course content.
type SectionType string

const (
	SectionLesson   SectionType = "lesson"
	SectionVideo    SectionType = "video"
	SectionQuiz     SectionType = "quiz"
	SectionExercise SectionType = "exercise"
)

// Gradable reports whether sections of this type carry a numeric score.
// Lessons and videos count toward progression only.
func (t SectionType) Gradable() bool {
	return t == SectionQuiz || t == SectionExercise
}

// Course represents one course a student can be enrolled in.
type Course struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
}

// Section represents one gradable or informational unit inside a course.
type Section struct {
	ID       int64       `json:"id"`
	CourseID int64       `json:"course_id"`
	Title    string      `json:"title"`
	Type     SectionType `json:"type"`
	Position int         `json:"position"`
}

// AssignmentOrigin records how an assignment came to exist. Auto-created
// assignments are synthesized when a student submits a score for a section
// nobody assigned to them; keeping the origin visible makes that special
// case auditable instead of a hidden lookup side effect.
type AssignmentOrigin string

const (
	AssignmentExisting    AssignmentOrigin = "existing"
	AssignmentAutoCreated AssignmentOrigin = "auto"
)

// Assignment binds one section to one student. At most one per (section, student).
type Assignment struct {
	ID        int64            `json:"id"`
	SectionID int64            `json:"section_id"`
	StudentID int64            `json:"student_id"`
	Origin    AssignmentOrigin `json:"origin"`
	CreatedAt time.Time        `json:"created_at"`
}

// ProgressStatus represents the completion state of a section for a student.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressGraded     ProgressStatus = "graded"
)

// Done reports whether the section counts as completed for progression purposes.
func (s ProgressStatus) Done() bool {
	return s == ProgressCompleted || s == ProgressGraded
}

// SectionProgress is the live score record for one (assignment, student) pair.
// A retake overwrites the existing row; there is never more than one per assignment.
type SectionProgress struct {
	ID           int64          `json:"id"`
	AssignmentID int64          `json:"assignment_id"`
	Status       ProgressStatus `json:"status"`
	Score        *float64       `json:"score,omitempty"`
	TimeSpentSec *int           `json:"time_spent_sec,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// ProgressRow is a SectionProgress joined with its section, as the aggregator
// consumes it.
type ProgressRow struct {
	SectionProgress
	SectionID   int64       `json:"section_id"`
	SectionType SectionType `json:"section_type"`
}

// ActivityType classifies an AI tutoring session.
type ActivityType string

const (
	ActivityQuiz     ActivityType = "quiz"
	ActivityExercise ActivityType = "exercise"
	ActivityRevision ActivityType = "revision"
)

// Valid reports whether the activity type is one of the known kinds.
func (a ActivityType) Valid() bool {
	return a == ActivityQuiz || a == ActivityExercise || a == ActivityRevision
}

// SessionStatus represents the lifecycle state of a tutoring session.
type SessionStatus string

const (
	SessionOpen             SessionStatus = "open"
	SessionCompleted        SessionStatus = "completed"
	SessionEvaluating       SessionStatus = "evaluating"
	SessionEvaluated        SessionStatus = "evaluated"
	SessionEvaluationFailed SessionStatus = "evaluation_failed"
)

// TutoringSession represents one AI tutoring conversation for a student in a course.
type TutoringSession struct {
	ID           string        `json:"id"`
	StudentID    int64         `json:"student_id"`
	CourseID     int64         `json:"course_id"`
	ActivityType ActivityType  `json:"activity_type"`
	Context      string        `json:"context"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// MessageRole represents a chat message role.
type MessageRole string

const (
	RoleStudent   MessageRole = "student"
	RoleAssistant MessageRole = "assistant"
)

// SessionMessage is one message in a tutoring session transcript.
type SessionMessage struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ActivityScoreEntry is one immutable ledger record for an evaluated tutoring
// session. Entries are historical evidence: never updated, never deleted.
type ActivityScoreEntry struct {
	ID                 int64        `json:"id"`
	SessionID          string       `json:"session_id"`
	StudentID          int64        `json:"student_id"`
	CourseID           int64        `json:"course_id"`
	ActivityType       ActivityType `json:"activity_type"`
	ComprehensionScore float64      `json:"comprehension_score"`
	AccuracyScore      float64      `json:"accuracy_score"`
	AutonomyScore      float64      `json:"autonomy_score"`
	FinalScore         float64      `json:"final_score"`
	Strengths          []string     `json:"strengths"`
	Weaknesses         []string     `json:"weaknesses"`
	Recommendation     string       `json:"recommendation"`
	DurationMinutes    int          `json:"duration_minutes"`
	MessageCount       int          `json:"message_count"`
	CreatedAt          time.Time    `json:"created_at"`
}

// StudentCourseScore is the blended competency snapshot for one student in one
// course. All averages and the continuous score are derived; only the exam and
// final-grade fields are entered by a teacher.
type StudentCourseScore struct {
	ID                     int64      `json:"id"`
	StudentID              int64      `json:"student_id"`
	CourseID               int64      `json:"course_id"`
	QuizAverage            float64    `json:"quiz_average"`
	ExerciseAverage        float64    `json:"exercise_average"`
	AIComprehensionAverage float64    `json:"ai_comprehension_average"`
	ContinuousScore        float64    `json:"continuous_score"`
	QuizCount              int        `json:"quiz_count"`
	ExerciseCount          int        `json:"exercise_count"`
	AISessionCount         int        `json:"ai_session_count"`
	ExamGrade              *float64   `json:"exam_grade,omitempty"`
	ExamDate               *time.Time `json:"exam_date,omitempty"`
	ExamComment            string     `json:"exam_comment,omitempty"`
	FinalGrade             *float64   `json:"final_grade,omitempty"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// CourseProgression tracks how much of a course a student has worked through.
// Its denominator is all sections of the course, not just scored ones, so it
// moves independently of StudentCourseScore.
type CourseProgression struct {
	ID             int64     `json:"id"`
	StudentID      int64     `json:"student_id"`
	CourseID       int64     `json:"course_id"`
	Percentage     float64   `json:"percentage"`
	LastActivityAt time.Time `json:"last_activity_at"`
}
