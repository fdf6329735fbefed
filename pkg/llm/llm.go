package llm

import (
	"context"
)

// Completer is a single-shot text completion capability. The guardrail's
// semantic stage and the judge pipeline depend on this interface rather than
// on a concrete provider.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
