// Package evaluation turns a completed AI tutoring session into one immutable
// activity score ledger entry via an LLM call.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/avelot/tutoria/internal/apperr"
	"github.com/avelot/tutoria/internal/llm/prompts"
	"github.com/avelot/tutoria/internal/model"
	"github.com/avelot/tutoria/internal/store"
)

// Final score blend: correctness and understanding dominate, independence
// counts for the rest.
const (
	weightComprehension = 0.4
	weightAccuracy      = 0.4
	weightAutonomy      = 0.2
)

// evalTemperature is kept low to favor deterministic grading.
const evalTemperature = 0.2

// Completer is the LLM transport used for evaluation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, transcript []model.SessionMessage, maxTokens int, temperature float32) (string, error)
}

// Recomputer recomputes the course-level score snapshot after a ledger write.
type Recomputer interface {
	Recompute(studentID, courseID int64) (*model.StudentCourseScore, error)
}

// Evaluator runs the per-session evaluation pipeline.
type Evaluator struct {
	store     *store.Store
	llm       Completer
	agg       Recomputer
	maxTokens int
}

// New creates an Evaluator.
func New(s *store.Store, llm Completer, agg Recomputer, maxTokens int) *Evaluator {
	return &Evaluator{store: s, llm: llm, agg: agg, maxTokens: maxTokens}
}

// ExistingResult returns the ledger entry for a session, or nil when the
// session has not been evaluated.
func (e *Evaluator) ExistingResult(sessionID string) (*model.ActivityScoreEntry, error) {
	return e.store.GetActivityScoreBySession(sessionID)
}

// Evaluate runs one evaluation: claim the session, load the transcript,
// call the model, validate the reply, persist the ledger entry, recompute.
//
// Evaluation is at-most-once per session. A concurrent or repeated attempt
// gets apperr.ErrDuplicateEvaluation; callers that may double-fire should
// treat that as success and read the existing result.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string) (*model.ActivityScoreEntry, error) {
	sess, err := e.store.GetTutoringSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
	}

	claimed, err := e.store.ClaimSessionForEvaluation(sessionID)
	if err != nil {
		return nil, fmt.Errorf("claim session: %w", err)
	}
	if !claimed {
		cur, err := e.store.GetTutoringSession(sessionID)
		if err != nil {
			return nil, fmt.Errorf("reload session: %w", err)
		}
		if cur != nil && cur.Status == model.SessionOpen {
			return nil, apperr.Validationf("session", "not completed yet")
		}
		return nil, apperr.ErrDuplicateEvaluation
	}

	entry, err := e.run(ctx, sess)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (e *Evaluator) run(ctx context.Context, sess *model.TutoringSession) (*model.ActivityScoreEntry, error) {
	transcript, err := e.store.GetTranscript(sess.ID)
	if err != nil {
		e.release(sess.ID, model.SessionCompleted)
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if len(transcript) == 0 {
		e.release(sess.ID, model.SessionCompleted)
		return nil, apperr.Validationf("session", "transcript is empty")
	}

	durationMin := 0
	if sess.CompletedAt != nil {
		durationMin = int(sess.CompletedAt.Sub(sess.StartedAt).Minutes())
	}

	prompt, err := prompts.BuildEvaluationPrompt(sess.ActivityType, prompts.EvalData{
		ActivityContext: sess.Context,
		DurationMinutes: durationMin,
		MessageCount:    len(transcript),
	})
	if err != nil {
		e.release(sess.ID, model.SessionCompleted)
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	raw, err := e.llm.Complete(ctx, prompt, transcript, e.maxTokens, evalTemperature)
	if err != nil {
		// Provider failures leave the session completed so the caller can
		// retry; the unique ledger constraint makes blind retry safe.
		e.release(sess.ID, model.SessionCompleted)
		return nil, fmt.Errorf("evaluate session %s: %w", sess.ID, err)
	}

	scores, err := parseScores(raw)
	if err != nil {
		// A malformed reply usually means a rubric defect, not a transient
		// fault, so it is surfaced rather than retried.
		slog.Error("unparseable evaluation reply",
			"session_id", sess.ID, "error", err, "raw", raw)
		e.release(sess.ID, model.SessionEvaluationFailed)
		return nil, err
	}

	final := round2(scores.Comprehension*weightComprehension +
		scores.Accuracy*weightAccuracy +
		scores.Autonomy*weightAutonomy)

	entry := model.ActivityScoreEntry{
		SessionID:          sess.ID,
		StudentID:          sess.StudentID,
		CourseID:           sess.CourseID,
		ActivityType:       sess.ActivityType,
		ComprehensionScore: scores.Comprehension,
		AccuracyScore:      scores.Accuracy,
		AutonomyScore:      scores.Autonomy,
		FinalScore:         final,
		Strengths:          scores.Strengths,
		Weaknesses:         scores.Weaknesses,
		Recommendation:     scores.Recommendation,
		DurationMinutes:    durationMin,
		MessageCount:       len(transcript),
	}

	id, err := e.store.InsertActivityScore(entry)
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateEvaluation) {
			e.release(sess.ID, model.SessionEvaluated)
			return nil, apperr.ErrDuplicateEvaluation
		}
		e.release(sess.ID, model.SessionCompleted)
		return nil, fmt.Errorf("persist ledger entry: %w", err)
	}
	entry.ID = id

	if err := e.store.SetSessionStatus(sess.ID, model.SessionEvaluated); err != nil {
		slog.Error("failed to mark session evaluated", "session_id", sess.ID, "error", err)
	}

	// Recompute failures are logged, not returned: the ledger entry is
	// durable and the next trigger recomputes from source records anyway.
	if _, err := e.agg.Recompute(sess.StudentID, sess.CourseID); err != nil {
		slog.Error("recompute after evaluation failed",
			"student_id", sess.StudentID, "course_id", sess.CourseID, "error", err)
	}

	slog.Info("session evaluated",
		"session_id", sess.ID, "student_id", sess.StudentID, "course_id", sess.CourseID,
		"final_score", final)
	return &entry, nil
}

func (e *Evaluator) release(sessionID string, status model.SessionStatus) {
	if err := e.store.SetSessionStatus(sessionID, status); err != nil {
		slog.Error("failed to release session claim", "session_id", sessionID, "error", err)
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
