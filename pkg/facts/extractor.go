// Package facts derives durable user facts from single utterances using a
// fixed pattern set. It is deliberately low precision and low recall: any
// phrasing outside the patterns is ignored, and that is accepted behavior.
package facts

import (
	"regexp"
	"strings"
)

var (
	namePattern    = regexp.MustCompile(`(?i)my name is\s+([A-Za-z\-\s]{2,40})`)
	likePattern    = regexp.MustCompile(`(?i)i (?:really )?(?:like|love)\s+([^.!?]+)`)
	dislikePattern = regexp.MustCompile(`(?i)i (?:really )?dislike\s+([^.!?]+)`)
)

// Extract returns zero or more short fact statements for the utterance.
// The rules are evaluated independently, so one utterance can yield several
// facts. Extract is a pure function with no side effects.
func Extract(text string) []string {
	var out []string
	if m := namePattern.FindStringSubmatch(text); m != nil {
		out = append(out, "User name is "+strings.TrimSpace(m[1]))
	}
	if m := likePattern.FindStringSubmatch(text); m != nil {
		out = append(out, "User likes "+strings.TrimSpace(m[1]))
	}
	if m := dislikePattern.FindStringSubmatch(text); m != nil {
		out = append(out, "User dislikes "+strings.TrimSpace(m[1]))
	}
	return out
}
