package model

// Config holds runtime server parameters set via CLI flags.
type Config struct {
	Lang           string // UI language (en, fr)
	SecureCookies  bool   // Set Secure flag on cookies (disable for local dev)
	MaxEvalTokens  int    // Token ceiling for session evaluation replies
	MaxGradeTokens int    // Token ceiling for exercise grading replies
}
