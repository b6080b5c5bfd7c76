// Package prompt composes the grounding system prompt injected into every
// completion call.
package prompt

import "strings"

// DefaultPersona is the fixed preamble sentence; it is always the first
// line of any assembled prompt.
const DefaultPersona = "You are a warm, concise, emotionally intelligent AI companion. Match tone. Ask short follow-ups occasionally."

const sectionDelimiter = " | "

// Assembler renders the persona plus up to three labeled sections: known
// facts, session summaries and per-turn recalled memories. A section with
// zero items is omitted entirely rather than emitted with an empty label.
type Assembler struct {
	Persona string
}

func NewAssembler(persona string) *Assembler {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	return &Assembler{Persona: persona}
}

// Build joins the sections in fixed order: persona, facts, summaries,
// recall. Items within a section are joined with " | ".
func (a *Assembler) Build(facts, summaries, recalled []string) string {
	lines := []string{a.Persona}
	if len(facts) > 0 {
		lines = append(lines, "Known user facts: "+strings.Join(facts, sectionDelimiter))
	}
	if len(summaries) > 0 {
		lines = append(lines, "Session summaries: "+strings.Join(summaries, sectionDelimiter))
	}
	if len(recalled) > 0 {
		lines = append(lines, "Relevant memories: "+strings.Join(recalled, sectionDelimiter))
	}
	return strings.Join(lines, "\n")
}
