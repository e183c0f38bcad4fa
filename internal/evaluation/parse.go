package evaluation

import (
	"encoding/json"
	"fmt"

	"github.com/avelot/tutoria/internal/apperr"
)

// Scores is the validated, structured result of one session evaluation.
type Scores struct {
	Comprehension  float64
	Accuracy       float64
	Autonomy       float64
	Strengths      []string
	Weaknesses     []string
	Recommendation string
}

// parseScores parses a model reply into Scores. Every numeric field must be
// present and within [0,100]; an out-of-range value is a hard failure, never
// clamped. The ParseError keeps the raw reply for rubric debugging.
func parseScores(raw string) (Scores, error) {
	var payload struct {
		Comprehension  *float64 `json:"comprehension"`
		Accuracy       *float64 `json:"accuracy"`
		Autonomy       *float64 `json:"autonomy"`
		Strengths      []string `json:"strengths"`
		Weaknesses     []string `json:"weaknesses"`
		Recommendation string   `json:"recommendation"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Scores{}, &apperr.ParseError{Reason: err.Error(), Raw: raw}
	}

	fields := []struct {
		name  string
		value *float64
	}{
		{"comprehension", payload.Comprehension},
		{"accuracy", payload.Accuracy},
		{"autonomy", payload.Autonomy},
	}
	for _, f := range fields {
		if f.value == nil {
			return Scores{}, &apperr.ParseError{Reason: "missing field " + f.name, Raw: raw}
		}
		if *f.value < 0 || *f.value > 100 {
			return Scores{}, &apperr.ParseError{
				Reason: fmt.Sprintf("%s out of range: %v", f.name, *f.value),
				Raw:    raw,
			}
		}
	}

	return Scores{
		Comprehension:  *payload.Comprehension,
		Accuracy:       *payload.Accuracy,
		Autonomy:       *payload.Autonomy,
		Strengths:      payload.Strengths,
		Weaknesses:     payload.Weaknesses,
		Recommendation: payload.Recommendation,
	}, nil
}
