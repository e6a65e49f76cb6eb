package fuzzy

import (
	"testing"
)

func TestNormalizeTerm(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Lowercases and trims",
			input:    "  Bohemian Rhapsody  ",
			expected: "bohemian rhapsody",
		},
		{
			name:     "Collapses punctuation runs to single spaces",
			input:    "Don't Stop Me Now!!!",
			expected: "don t stop me now",
		},
		{
			name:     "Collapses internal whitespace",
			input:    "One   More\tTime",
			expected: "one more time",
		},
		{
			name:     "Strips accents",
			input:    "Beyoncé",
			expected: "beyonce",
		},
		{
			name:     "Keeps digits",
			input:    "Track 49 (Remastered 2011)",
			expected: "track 49 remastered 2011",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "Only punctuation",
			input:    "!?-",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := n.NormalizeTerm(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTerm(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPrimaryArtist(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Single artist unchanged",
			input:    "Daft Punk",
			expected: "Daft Punk",
		},
		{
			name:     "Takes first of comma-joined artists",
			input:    "Daft Punk, Pharrell Williams, Nile Rodgers",
			expected: "Daft Punk",
		},
		{
			name:     "Trims surrounding whitespace",
			input:    "  Daft Punk , Pharrell Williams",
			expected: "Daft Punk",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := n.PrimaryArtist(tt.input)
			if result != tt.expected {
				t.Errorf("PrimaryArtist(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
