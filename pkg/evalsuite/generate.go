package evalsuite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Agent answers a single natural-language question end to end. Satisfied by
// agent.Agent.
type Agent interface {
	Query(ctx context.Context, question string) string
}

// GeneratorConfig configures response generation over a question set.
type GeneratorConfig struct {
	Logger *slog.Logger
	Agent  Agent
	Clock  clockwork.Clock
}

func (c *GeneratorConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Agent == nil {
		return fmt.Errorf("agent is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Generator replays a question set through the agent and collects responses.
type Generator struct {
	log   *slog.Logger
	agent Agent
	clock clockwork.Clock
}

func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return &Generator{
		log:   cfg.Logger,
		agent: cfg.Agent,
		clock: cfg.Clock,
	}, nil
}

// Generate asks the agent each question in order and returns the collected
// responses. Questions run sequentially so each answer reflects a fresh,
// independent conversation.
func (g *Generator) Generate(ctx context.Context, questions []Question) (*ResponseFile, error) {
	results := make([]ResponseRecord, 0, len(questions))
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation interrupted: %w", err)
		}
		g.log.Info("Generating response", "index", i+1, "total", len(questions), "question", q.Question)
		start := g.clock.Now()
		response := g.agent.Query(ctx, q.Question)
		g.log.Info("Response generated", "index", i+1, "duration", g.clock.Since(start).Round(time.Millisecond))
		results = append(results, ResponseRecord{
			Question:           q.Question,
			GoldenAnswer:       q.GoldenAnswer,
			EvaluationCriteria: q.EvaluationCriteria,
			AgentResponse:      response,
		})
	}
	return &ResponseFile{
		GeneratedAt: g.clock.Now().UTC().Format(time.RFC3339),
		Results:     results,
	}, nil
}
