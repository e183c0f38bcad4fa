// Package grading grades free-text exercise answers against expected answers
// with one LLM call, falling back to normalized string equality when the
// model's reply cannot be parsed. Fallback results are flagged so consumers
// can tell AI-graded from string-matched scores.
package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/llm/prompts"
	"github.com/avelot/tutoria/internal/model"
)

const gradingTemperature = 0.1

// Source tells how a result was produced.
type Source string

const (
	// SourceAI marks a result graded by the language model.
	SourceAI Source = "ai"
	// SourceFallback marks a result graded by normalized exact match.
	SourceFallback Source = "fallback"
)

// AnswerInput is one answer pair to grade.
type AnswerInput struct {
	Question       string  `json:"question"`
	ExpectedAnswer string  `json:"expected_answer"`
	StudentAnswer  string  `json:"student_answer"`
	Points         float64 `json:"points"`
}

// AnswerResult is the grade for one answer.
type AnswerResult struct {
	Question      string  `json:"question"`
	Correct       bool    `json:"correct"`
	PointsAwarded float64 `json:"points_awarded"`
	MaxPoints     float64 `json:"max_points"`
	Feedback      string  `json:"feedback,omitempty"`
	Source        Source  `json:"source"`
}

// Result is the grade for a whole answer batch. Totals are always recomputed
// from the per-answer results, never taken from the model's own arithmetic.
type Result struct {
	Answers    []AnswerResult `json:"answers"`
	TotalScore float64        `json:"total_score"`
	MaxScore   float64        `json:"max_score"`
	Percentage float64        `json:"percentage"`
	Source     Source         `json:"source"`
}

// Completer is the LLM transport used for grading.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, transcript []model.SessionMessage, maxTokens int, temperature float32) (string, error)
}

// Assistant grades exercise answer batches.
type Assistant struct {
	llm       Completer
	maxTokens int
}

// New creates an Assistant.
func New(llm Completer, maxTokens int) *Assistant {
	return &Assistant{llm: llm, maxTokens: maxTokens}
}

// Grade grades all answer pairs in one model call. When the model is
// unreachable or its reply cannot be parsed, every answer is graded by
// normalized exact match instead and the result is flagged as fallback.
func (a *Assistant) Grade(ctx context.Context, answers []AnswerInput) (*Result, error) {
	if len(answers) == 0 {
		return nil, apperr.Validationf("answers", "empty batch")
	}
	for i, in := range answers {
		if in.Points < 0 {
			return nil, apperr.Validationf("answers", "negative points at index %d", i)
		}
	}

	promptAnswers := make([]prompts.GradingAnswer, len(answers))
	for i, in := range answers {
		promptAnswers[i] = prompts.GradingAnswer{
			Index:          i,
			Question:       in.Question,
			ExpectedAnswer: in.ExpectedAnswer,
			StudentAnswer:  in.StudentAnswer,
			Points:         in.Points,
		}
	}
	prompt, err := prompts.BuildGradingPrompt(promptAnswers)
	if err != nil {
		return nil, err
	}

	trigger := []model.SessionMessage{
		{Role: model.RoleStudent, Content: "Grade the answers as instructed."},
	}
	raw, err := a.llm.Complete(ctx, prompt, trigger, a.maxTokens, gradingTemperature)
	if err != nil {
		slog.Warn("grading model unavailable, using fallback", "error", err)
		return fallbackGrade(answers), nil
	}

	results, err := parseGrades(raw, answers)
	if err != nil {
		slog.Warn("unparseable grading reply, using fallback", "error", err, "raw", raw)
		return fallbackGrade(answers), nil
	}
	return assemble(results, SourceAI), nil
}

// parseGrades parses the model reply and validates it covers every answer.
// Awarded points are clamped to [0, max] so one bad value cannot corrupt
// the recomputed totals.
func parseGrades(raw string, answers []AnswerInput) ([]AnswerResult, error) {
	var payload struct {
		Answers []struct {
			Index         *int    `json:"index"`
			Correct       bool    `json:"correct"`
			PointsAwarded float64 `json:"points_awarded"`
			Feedback      string  `json:"feedback"`
		} `json:"answers"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &apperr.ParseError{Reason: err.Error(), Raw: raw}
	}

	results := make([]AnswerResult, len(answers))
	seen := make([]bool, len(answers))
	for _, g := range payload.Answers {
		if g.Index == nil || *g.Index < 0 || *g.Index >= len(answers) {
			return nil, &apperr.ParseError{Reason: "result with missing or out-of-range index", Raw: raw}
		}
		i := *g.Index
		if seen[i] {
			return nil, &apperr.ParseError{Reason: "duplicate result index", Raw: raw}
		}
		seen[i] = true

		awarded := math.Min(math.Max(g.PointsAwarded, 0), answers[i].Points)
		results[i] = AnswerResult{
			Question:      answers[i].Question,
			Correct:       g.Correct,
			PointsAwarded: awarded,
			MaxPoints:     answers[i].Points,
			Feedback:      g.Feedback,
			Source:        SourceAI,
		}
	}
	for i, ok := range seen {
		if !ok {
			return nil, &apperr.ParseError{
				Reason: fmt.Sprintf("no result for answer %d", i),
				Raw:    raw,
			}
		}
	}
	return results, nil
}

// fallbackGrade grades each answer by normalized exact match: full points on
// a match, zero otherwise. No partial credit outside the AI path.
func fallbackGrade(answers []AnswerInput) *Result {
	results := make([]AnswerResult, len(answers))
	for i, in := range answers {
		correct := normalize(in.ExpectedAnswer) == normalize(in.StudentAnswer)
		awarded := 0.0
		if correct {
			awarded = in.Points
		}
		results[i] = AnswerResult{
			Question:      in.Question,
			Correct:       correct,
			PointsAwarded: awarded,
			MaxPoints:     in.Points,
			Source:        SourceFallback,
		}
	}
	return assemble(results, SourceFallback)
}

func assemble(results []AnswerResult, source Source) *Result {
	var total, max float64
	for _, r := range results {
		total += r.PointsAwarded
		max += r.MaxPoints
	}
	pct := 0.0
	if max > 0 {
		pct = math.Round(total/max*100*100) / 100
	}
	return &Result{
		Answers:    results,
		TotalScore: total,
		MaxScore:   max,
		Percentage: pct,
		Source:     source,
	}
}
