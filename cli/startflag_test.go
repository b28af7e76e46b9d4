package cli

import "testing"

// TestParseProgramStartScenarioS1 covers spec scenario S1.
func TestParseProgramStartScenarioS1(t *testing.T) {
	if _, err := ParseProgramStart("0x0000000800100000"); err == nil {
		t.Fatal("expected InvalidProgramStartError for a misaligned start address")
	}

	v, err := ParseProgramStart("0x0000000080000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x0000_0000_8000_0000 {
		t.Errorf("got 0x%x, want 0x80000000", v)
	}
}

func TestParseProgramStartAcceptsUppercasePrefix(t *testing.T) {
	v, err := ParseProgramStart("0X80000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0x8000_0000 {
		t.Errorf("got 0x%x, want 0x80000000", v)
	}
}

func TestParseProgramStartRejectsGarbage(t *testing.T) {
	if _, err := ParseProgramStart("not-hex"); err == nil {
		t.Fatal("expected a parse error")
	}
}
