package guardrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parth0774/Sales-AI-Agent/pkg/llm"
)

// Stage identifies which filter stage produced a verdict.
type Stage string

const (
	// StagePattern means the deterministic pattern stage decided.
	StagePattern Stage = "pattern"
	// StageSemantic means the model-based stage decided.
	StageSemantic Stage = "semantic"
	// StageNone means no stage decided; this is the fail-open path.
	StageNone Stage = "none"
)

// Verdict is the outcome of evaluating one query. Produced fresh per query,
// never persisted.
type Verdict struct {
	Allowed bool
	Reason  string
	Stage   Stage
}

// Config configures a Guardrail.
type Config struct {
	Logger *slog.Logger
	// Completer runs the semantic stage. Pattern matching never uses it.
	Completer llm.Completer
	// Template is the semantic-stage instruction text with a %s placeholder
	// for the raw query.
	Template string
}

func (cfg *Config) Validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Template == "" {
		return errors.New("template is required")
	}
	if !strings.Contains(cfg.Template, "%s") {
		return errors.New("template must contain a %s placeholder for the query")
	}
	return nil
}

// Guardrail is the two-stage sensitive-request filter: a deterministic
// pattern stage followed, only when the patterns pass, by a model-based
// semantic check.
type Guardrail struct {
	log       *slog.Logger
	completer llm.Completer
	template  string
}

// New creates a new Guardrail.
func New(cfg Config) (*Guardrail, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate guardrail config: %w", err)
	}
	return &Guardrail{
		log:       cfg.Logger,
		completer: cfg.Completer,
		template:  cfg.Template,
	}, nil
}

// Evaluate decides whether the query may be answered. The pattern stage is
// tried first and short-circuits; a provider error in the semantic stage
// fails open.
func (g *Guardrail) Evaluate(ctx context.Context, text string) Verdict {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		if r.re.MatchString(lowered) {
			if g.log != nil {
				g.log.Info("guardrail: pattern match", "category", string(r.category))
			}
			return Verdict{
				Allowed: false,
				Reason:  string(r.category),
				Stage:   StagePattern,
			}
		}
	}

	prompt := fmt.Sprintf(g.template, text)
	response, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		// Availability over strictness: the pattern stage above is the safety
		// net for the highest-severity categories.
		if g.log != nil {
			g.log.Warn("guardrail: semantic check failed, allowing query", "error", err)
		}
		return Verdict{
			Allowed: true,
			Reason:  "semantic check unavailable",
			Stage:   StageNone,
		}
	}

	// Real model outputs wrap the verdict in punctuation and extra words, so
	// substring containment is the contract, not exact match.
	if strings.Contains(strings.ToUpper(response), "REJECT") {
		if g.log != nil {
			g.log.Info("guardrail: semantic reject")
		}
		return Verdict{
			Allowed: false,
			Reason:  "the request was classified as asking for sensitive information",
			Stage:   StageSemantic,
		}
	}

	return Verdict{Allowed: true, Stage: StageSemantic}
}
