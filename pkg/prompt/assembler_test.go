package prompt

import (
	"strings"
	"testing"
)

func TestBuildAllSections(t *testing.T) {
	a := NewAssembler("")
	got := a.Build(
		[]string{"User name is Ada", "User likes tea"},
		[]string{"Talked about hiking"},
		[]string{"User likes tea"},
	)
	want := DefaultPersona + "\n" +
		"Known user facts: User name is Ada | User likes tea\n" +
		"Session summaries: Talked about hiking\n" +
		"Relevant memories: User likes tea"
	if got != want {
		t.Fatalf("prompt mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	a := NewAssembler("")
	got := a.Build(nil, nil, nil)
	if got != DefaultPersona {
		t.Fatalf("expected bare persona, got %q", got)
	}
	if strings.Contains(got, "Known user facts") || strings.Contains(got, "Session summaries") || strings.Contains(got, "Relevant memories") {
		t.Fatal("empty sections must be omitted entirely")
	}
}

func TestBuildSingleSection(t *testing.T) {
	a := NewAssembler("")
	got := a.Build(nil, []string{"only summaries"}, nil)
	want := DefaultPersona + "\nSession summaries: only summaries"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildPersonaOverride(t *testing.T) {
	a := NewAssembler("You are a test persona.")
	got := a.Build([]string{"fact"}, nil, nil)
	if !strings.HasPrefix(got, "You are a test persona.\n") {
		t.Fatalf("persona must lead the prompt, got %q", got)
	}
}

func TestBuildPersonaAlwaysFirstLine(t *testing.T) {
	a := NewAssembler("")
	got := a.Build([]string{"f"}, []string{"s"}, []string{"r"})
	lines := strings.Split(got, "\n")
	if lines[0] != DefaultPersona {
		t.Fatalf("first line must be the persona, got %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), got)
	}
}
