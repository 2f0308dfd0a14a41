package answercache

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"What is the capital of France?", "what is the capital of france?"},
		{"  What   is\tthe capital\nof France? ", "what is the capital of france?"},
		{"ALREADY NORMAL", "already normal"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key("what is go?", "session:1", "docs")
	b := Key("what is go?", "session:1", "docs")
	if a != b {
		t.Errorf("identical inputs produced different keys: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestKey_DistinctAcrossParts(t *testing.T) {
	base := Key("what is go?", "session:1", "docs")

	if Key("what is rust?", "session:1", "docs") == base {
		t.Error("different query produced same key")
	}
	if Key("what is go?", "session:2", "docs") == base {
		t.Error("different session scope produced same key")
	}
	if Key("what is go?", "session:1", "wiki") == base {
		t.Error("different collection produced same key")
	}
}

func TestKey_NoDelimiterCollision(t *testing.T) {
	// Concatenation ambiguity between parts must not collide.
	a := Key("ab", "c", "docs")
	b := Key("a", "bc", "docs")
	if a == b {
		t.Error("part-boundary shift produced same key")
	}
}
