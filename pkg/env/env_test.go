package env

import "testing"

func TestGetTrimsAndFallsBack(t *testing.T) {
	t.Setenv("CONSULTLY_TEST_FORMAT", "  console ")
	if got := Get("CONSULTLY_TEST_FORMAT", "json"); got != "console" {
		t.Fatalf("expected console, got %q", got)
	}
	t.Setenv("CONSULTLY_TEST_FORMAT", "   ")
	if got := Get("CONSULTLY_TEST_FORMAT", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstSkipsBlankKeys(t *testing.T) {
	t.Setenv("CONSULTLY_TEST_A", "")
	t.Setenv("CONSULTLY_TEST_B", "b")
	if got := First("none", "CONSULTLY_TEST_A", "CONSULTLY_TEST_B"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("none"); got != "none" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
