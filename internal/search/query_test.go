package search

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Café", "cafe"},
		{"  René Goscinny ", "rene goscinny"},
		{"DUNE", "dune"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		normalized string
		tokens     []string
	}{
		{
			name:       "stopwords dropped",
			query:      "The Name of the Wind",
			normalized: "name wind",
			tokens:     []string{"name", "wind"},
		},
		{
			name:       "accents folded",
			query:      "Café Résumé",
			normalized: "cafe resume",
			tokens:     []string{"cafe", "resume"},
		},
		{
			name:       "quoted phrase kept whole",
			query:      `dune "frank herbert" sci-fi`,
			normalized: "dune sci-fi frank herbert",
			tokens:     []string{"dune", "sci-fi", "frank herbert"},
		},
		{
			name:       "punctuation stripped",
			query:      "heat, crime!",
			normalized: "heat crime",
			tokens:     []string{"heat", "crime"},
		},
		{
			name:       "empty query",
			query:      "   ",
			normalized: "",
			tokens:     nil,
		},
		{
			name:       "empty phrase ignored",
			query:      `"" dune`,
			normalized: "dune",
			tokens:     []string{"dune"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.query)
			if got.Original != tt.query {
				t.Errorf("expected original %q, got %q", tt.query, got.Original)
			}
			if got.Normalized != tt.normalized {
				t.Errorf("expected normalized %q, got %q", tt.normalized, got.Normalized)
			}
			if !reflect.DeepEqual(got.Tokens, tt.tokens) {
				t.Errorf("expected tokens %v, got %v", tt.tokens, got.Tokens)
			}
		})
	}
}
