// Package prompts renders the system prompts for session evaluation and
// exercise grading from embedded templates, one rubric per activity type.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/avelot/tutoria/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxContextRunes = 10000

var (
	loadOnce      sync.Once
	loadErr       error
	evalTemplates map[model.ActivityType]*template.Template
	gradeTemplate *template.Template
)

// EvalData holds template data for session evaluation prompts.
type EvalData struct {
	ActivityContext string
	DurationMinutes int
	MessageCount    int
}

// GradingAnswer is one answer pair rendered into the exercise grading prompt.
type GradingAnswer struct {
	Index          int
	Question       string
	ExpectedAnswer string
	StudentAnswer  string
	Points         float64
}

func load() error {
	loadOnce.Do(func() {
		evalTemplates = make(map[model.ActivityType]*template.Template)

		for _, at := range []model.ActivityType{model.ActivityQuiz, model.ActivityExercise, model.ActivityRevision} {
			name := "templates/eval_" + string(at) + ".txt"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = errors.New("read prompt file " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New("eval").Parse(string(content))
			if err != nil {
				loadErr = errors.New("parse prompt template " + name + ": " + err.Error())
				return
			}
			evalTemplates[at] = tmpl
		}

		content, err := templateFS.ReadFile("templates/grade_exercises.txt")
		if err != nil {
			loadErr = errors.New("read prompt file templates/grade_exercises.txt: " + err.Error())
			return
		}
		gradeTemplate, err = template.New("grade").Parse(string(content))
		if err != nil {
			loadErr = errors.New("parse prompt template templates/grade_exercises.txt: " + err.Error())
		}
	})
	return loadErr
}

// BuildEvaluationPrompt renders the rubric for the given activity type.
// The transcript itself travels as chat messages, not inside the prompt.
func BuildEvaluationPrompt(at model.ActivityType, data EvalData) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	tmpl, ok := evalTemplates[at]
	if !ok {
		return "", fmt.Errorf("no evaluation prompt for activity type %q", at)
	}

	data.ActivityContext = sanitize(data.ActivityContext)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildGradingPrompt renders the exercise grading prompt with all answer
// pairs inlined, so the whole batch is graded in one call.
func BuildGradingPrompt(answers []GradingAnswer) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	sanitized := make([]GradingAnswer, len(answers))
	for i, a := range answers {
		a.Question = sanitize(a.Question)
		a.ExpectedAnswer = sanitize(a.ExpectedAnswer)
		a.StudentAnswer = sanitize(a.StudentAnswer)
		sanitized[i] = a
	}

	var buf bytes.Buffer
	if err := gradeTemplate.Execute(&buf, struct{ Answers []GradingAnswer }{sanitized}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitize(s string) string {
	s = studentAnswerRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if s == "" {
		return "[none provided]"
	}

	if utf8.RuneCountInString(s) > maxContextRunes {
		runes := []rune(s)
		s = string(runes[:maxContextRunes]) + "\n\n[truncated due to length]"
	}
	return s
}
