package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM is a lightweight model implementation useful for local testing
// and the offline demo; it echoes the user message back with a prefix.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy reply:"
	}
	return &DummyLLM{Prefix: prefix}
}

func (d *DummyLLM) Complete(_ context.Context, _, user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		user = "<empty message>"
	}
	return fmt.Sprintf("%s %s", d.Prefix, user), nil
}

var _ ChatModel = (*DummyLLM)(nil)
