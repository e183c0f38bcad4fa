package model

import "time"

// ResultsExport is the top-level JSON structure for the gradebook export.
type ResultsExport struct {
	LLMModel    string          `json:"llm_model"`
	Lang        string          `json:"lang"`
	GeneratedAt time.Time       `json:"generated_at"`
	Courses     []CourseResults `json:"courses"`
}

// CourseResults holds one course's assessment state for export.
type CourseResults struct {
	CourseID int64                 `json:"course_id"`
	Title    string                `json:"title"`
	Subject  string                `json:"subject"`
	Students []StudentCourseResult `json:"students"`
}

// StudentCourseResult holds one student's full assessment record in a course:
// the derived score snapshot, the coverage progression, and the session ledger.
type StudentCourseResult struct {
	StudentID   int64                `json:"student_id"`
	Username    string               `json:"username"`
	DisplayName string               `json:"display_name"`
	Score       *StudentCourseScore  `json:"score,omitempty"`
	Progression *CourseProgression   `json:"progression,omitempty"`
	Sessions    []ActivityScoreEntry `json:"sessions,omitempty"`
}
