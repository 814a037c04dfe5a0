package generation

import (
	"strings"
	"testing"
)

func TestNormalizeNarration_ParagraphsBecomeSentences(t *testing.T) {
	in := "First paragraph ends here.\n\nSecond paragraph starts.\nIt continues on a new line."
	out := NormalizeNarration(in)

	if strings.Contains(out, "\n") {
		t.Fatalf("line breaks should be gone: %q", out)
	}
	if strings.Contains(out, "..") {
		t.Fatalf("doubled terminators should collapse: %q", out)
	}
	if !strings.Contains(out, "ends here. Second paragraph") {
		t.Fatalf("paragraph break should become sentence boundary: %q", out)
	}
}

func TestNormalizeNarration_Respellings(t *testing.T) {
	out := NormalizeNarration("Krishna smiled at Hanuman while Rama watched.")
	for _, want := range []string{"Krishnuh", "Hunoomaan", "Raamuh"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing respelling %q in %q", want, out)
		}
	}
	// Whole-word only: "Ramayana" must not be touched by the "Rama" rule.
	out = NormalizeNarration("The Ramayana tells of Rama.")
	if !strings.Contains(out, "Ramayana") || !strings.Contains(out, "Raamuh") {
		t.Fatalf("whole-word matching broken: %q", out)
	}
}

func TestNormalizeNarration_EdgeInputs(t *testing.T) {
	if NormalizeNarration("") != "" {
		t.Fatalf("empty input should stay empty")
	}
	if NormalizeNarration("   \n\n  ") != "" {
		t.Fatalf("whitespace-only input should stay empty")
	}
	if got := NormalizeNarration("One   line  only."); strings.Contains(got, "  ") {
		t.Fatalf("multiple spaces should collapse: %q", got)
	}
}
