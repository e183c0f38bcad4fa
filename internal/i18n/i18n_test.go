package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NotYetAssessed")
	if got != "No assessment data yet for this course." {
		t.Errorf("T(NotYetAssessed) = %q, want 'No assessment data yet for this course.'", got)
	}

	got = T(ctx, "EvaluationPending")
	if got != "Evaluation is in progress." {
		t.Errorf("T(EvaluationPending) = %q, want 'Evaluation is in progress.'", got)
	}
}

func TestTranslateFrench(t *testing.T) {
	ctx := initLang(t, "fr")

	got := T(ctx, "NotYetAssessed")
	if got != "Aucune donnée d'évaluation pour ce cours pour l'instant." {
		t.Errorf("T(NotYetAssessed) = %q, want the French translation", got)
	}

	got = T(ctx, "LoginError")
	if got != "Nom d'utilisateur ou mot de passe invalide." {
		t.Errorf("T(LoginError) = %q, want the French translation", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "SessionsEvaluated", 1)
	if got1 != "1 session evaluated." {
		t.Errorf("Tp(SessionsEvaluated, 1) = %q, want '1 session evaluated.'", got1)
	}

	got5 := Tp(ctx, "SessionsEvaluated", 5)
	if got5 != "5 sessions evaluated." {
		t.Errorf("Tp(SessionsEvaluated, 5) = %q, want '5 sessions evaluated.'", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "SessionN", map[string]any{"ID": 42})
	if got != "Session #42" {
		t.Errorf("Td(SessionN, ID=42) = %q, want 'Session #42'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
