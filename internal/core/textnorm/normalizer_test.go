package textnorm

import (
	"reflect"
	"testing"
)

func testResources() Resources {
	return NewResources(
		[]string{"estou", "com", "de", "não", "e", "muito", " ", "Que"},
		map[string]string{"erros": "erro", "Documentos": "documento", "": "x"},
	)
}

func TestNormalizeScenarioLoginError(t *testing.T) {
	n := NewNormalizer(testResources())

	got := n.Normalize("Estou com erro de login, não consigo acessar, poderia ajudar?")
	want := []string{"erro", "login", "consigo", "acessar", "poderia", "ajudar"}
	if !reflect.DeepEqual(got.Tokens, want) {
		t.Fatalf("unexpected tokens: %v", got.Tokens)
	}
	if got.String() != "erro login consigo acessar poderia ajudar" {
		t.Fatalf("unexpected joined form: %q", got.String())
	}
}

func TestNormalizeReplacesPunctuationWithSpaces(t *testing.T) {
	n := NewNormalizer(NewResources(nil, nil))

	got := n.Normalize("status:atualizado/hoje!ok")
	want := []string{"status", "atualizado", "hoje", "ok"}
	if !reflect.DeepEqual(got.Tokens, want) {
		t.Fatalf("expected token boundaries preserved, got %v", got.Tokens)
	}
}

func TestNormalizeKeepsLowercaseAccentedLetters(t *testing.T) {
	n := NewNormalizer(NewResources(nil, nil))

	got := n.Normalize("solicitação atualização você")
	want := []string{"solicitação", "atualização", "você"}
	if !reflect.DeepEqual(got.Tokens, want) {
		t.Fatalf("unexpected tokens: %v", got.Tokens)
	}
}

func TestNormalizeFiltersBeforeCaseFolding(t *testing.T) {
	n := NewNormalizer(NewResources(nil, nil))

	got := n.Normalize("NÃO")
	want := []string{"n", "o"}
	if !reflect.DeepEqual(got.Tokens, want) {
		t.Fatalf("expected uppercase accent to split the token, got %v", got.Tokens)
	}
}

func TestNormalizeAppliesLemmasAndStopwords(t *testing.T) {
	n := NewNormalizer(testResources())

	got := n.Normalize("Erros e DOCUMENTOS que faltam")
	want := []string{"erro", "documento", "faltam"}
	if !reflect.DeepEqual(got.Tokens, want) {
		t.Fatalf("unexpected tokens: %v", got.Tokens)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewNormalizer(testResources())

	got := n.Normalize("  \n\t ")
	if len(got.Tokens) != 0 || got.String() != "" {
		t.Fatalf("expected no tokens, got %v", got.Tokens)
	}
}

func TestNewResourcesSkipsBlankEntries(t *testing.T) {
	res := testResources()
	if res.StopwordCount() != 7 {
		t.Fatalf("expected 7 stopwords, got %d", res.StopwordCount())
	}
	if res.LemmaCount() != 2 {
		t.Fatalf("expected 2 lemmas, got %d", res.LemmaCount())
	}
	if !res.IsStopword("que") {
		t.Fatalf("expected stopword keys to be lowercased")
	}
	if res.Lemma("desconhecido") != "desconhecido" {
		t.Fatalf("expected unknown token to pass through")
	}
}

func TestContainsWord(t *testing.T) {
	cases := []struct {
		text   string
		phrase string
		want   bool
	}{
		{"qual o status do pedido", "status", true},
		{"statusbar quebrou", "status", false},
		{"comoção geral", "como", false},
		{"como faço", "como", true},
		{"eu não consigo entrar", "não consigo", true},
		{"não consigo", "não consigo", true},
		{"ele pode?", "pode", true},
		{"podemos falar", "pode", false},
		{"", "pode", false},
		{"pode", "", false},
	}
	for _, tc := range cases {
		if got := ContainsWord(tc.text, tc.phrase); got != tc.want {
			t.Fatalf("ContainsWord(%q, %q) = %v, want %v", tc.text, tc.phrase, got, tc.want)
		}
	}
}

func TestContainsWordFindsLaterBoundedOccurrence(t *testing.T) {
	if !ContainsWord("loginx e depois login", "login") {
		t.Fatalf("expected second occurrence to match")
	}
	if !ContainsAnyWord("preciso da senha", "acesso", "senha") {
		t.Fatalf("expected ContainsAnyWord to match senha")
	}
}
