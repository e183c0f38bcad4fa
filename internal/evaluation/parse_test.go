package evaluation

import (
	"testing"

	"github.com/avelot/tutoria/internal/apperr"
)

func TestParseScores(t *testing.T) {
	raw := `{
		"comprehension": 82,
		"accuracy": 75.5,
		"autonomy": 60,
		"strengths": ["clear reasoning"],
		"weaknesses": ["slow on word problems"],
		"recommendation": "Practice word problems."
	}`

	got, err := parseScores(raw)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if got.Comprehension != 82 || got.Accuracy != 75.5 || got.Autonomy != 60 {
		t.Errorf("unexpected scores: %+v", got)
	}
	if len(got.Strengths) != 1 || got.Strengths[0] != "clear reasoning" {
		t.Errorf("unexpected strengths: %v", got.Strengths)
	}
	if got.Recommendation != "Practice word problems." {
		t.Errorf("unexpected recommendation: %q", got.Recommendation)
	}
}

func TestParseScoresZeroIsValid(t *testing.T) {
	// 0 is a real score, not a missing field.
	got, err := parseScores(`{"comprehension": 0, "accuracy": 0, "autonomy": 0}`)
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if got.Comprehension != 0 {
		t.Errorf("expected comprehension 0, got %f", got.Comprehension)
	}
}

func TestParseScoresFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "I think the student did well overall."},
		{"missing field", `{"comprehension": 80, "accuracy": 70}`},
		{"above range", `{"comprehension": 120, "accuracy": 70, "autonomy": 60}`},
		{"below range", `{"comprehension": 80, "accuracy": -5, "autonomy": 60}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScores(tt.raw)
			if err == nil {
				t.Fatal("expected parse error")
			}
			pe := apperr.AsParseError(err)
			if pe == nil {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if pe.Raw != tt.raw {
				t.Error("expected raw reply preserved in error")
			}
		})
	}
}
