package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/parth0774/Sales-AI-Agent/pkg/guardrail"
	"github.com/parth0774/Sales-AI-Agent/pkg/react"
)

// helpMessage is returned for empty input, before the guardrail or the model
// are ever consulted.
const helpMessage = "I'm here to help you with questions about subscription data. " +
	"Please ask me something like:\n" +
	"- Which enterprise customers are up for renewal?\n" +
	"- What's our total MRR from Healthcare companies?\n" +
	"- Show me companies with low seat utilization"

// rephraseMessage is returned when the model run fails on tool parsing.
const rephraseMessage = "I encountered an issue processing your query. Could you please rephrase it? " +
	"For example, you could ask about:\n" +
	"- Subscription renewals and status\n" +
	"- Revenue metrics (MRR, ARR) by industry or plan tier\n" +
	"- Seat utilization and usage statistics\n" +
	"- Company subscription details"

// Config configures an Agent.
type Config struct {
	Logger     *slog.Logger
	Guardrail  *guardrail.Guardrail
	ReactAgent *react.Agent
	LLM        react.LLMClient
}

func (cfg *Config) Validate() error {
	if cfg.Guardrail == nil {
		return errors.New("guardrail is required")
	}
	if cfg.ReactAgent == nil {
		return errors.New("react agent is required")
	}
	if cfg.LLM == nil {
		return errors.New("LLM client is required")
	}
	return nil
}

// Agent answers business questions over the subscription dataset. Every query
// passes the guardrail before the reasoning model sees it. Instances are
// stateless across calls apart from the immutable dataset and compiled rules.
type Agent struct {
	log        *slog.Logger
	guardrail  *guardrail.Guardrail
	reactAgent *react.Agent
	llm        react.LLMClient
}

// New creates a new Agent.
func New(cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate agent config: %w", err)
	}
	return &Agent{
		log:        cfg.Logger,
		guardrail:  cfg.Guardrail,
		reactAgent: cfg.ReactAgent,
		llm:        cfg.LLM,
	}, nil
}

// Query processes one user query and returns a response. It always returns
// text: guardrail rejections and provider failures become templated messages,
// never errors or panics.
func (a *Agent) Query(ctx context.Context, userQuery string) string {
	return a.QueryWithOutput(ctx, userQuery, nil)
}

// QueryWithOutput is Query with an optional writer that receives the final
// answer text as it is produced (used by the interactive CLI).
func (a *Agent) QueryWithOutput(ctx context.Context, userQuery string, output io.Writer) string {
	if strings.TrimSpace(userQuery) == "" {
		return helpMessage
	}

	verdict := a.guardrail.Evaluate(ctx, userQuery)
	if !verdict.Allowed {
		if a.log != nil {
			a.log.Info("agent: query rejected by guardrail", "stage", string(verdict.Stage), "reason", verdict.Reason)
		}
		return declineMessage(verdict)
	}

	userMsg := a.llm.CreateUserMessage(userQuery)
	result, err := a.reactAgent.Run(ctx, []react.Message{userMsg}, output)
	if err != nil {
		if a.log != nil {
			a.log.Error("agent: model run failed", "error", err)
		}
		return errorMessage(err)
	}

	return result.FinalText
}

// declineMessage builds the rejection response. Only the matched category is
// disclosed, never the pattern itself.
func declineMessage(verdict guardrail.Verdict) string {
	return fmt.Sprintf(
		"I cannot fulfill this request: %s. "+
			"I can only provide business metrics and non-sensitive subscription information. "+
			"If you need sensitive information, please contact the appropriate department. "+
			"However, I can help you with business-related questions about subscriptions, "+
			"revenue metrics, renewals, and usage statistics.",
		verdict.Reason)
}

// errorMessage maps a run failure to a user-facing response.
func errorMessage(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parsing") || strings.Contains(msg, "tool") {
		return rephraseMessage
	}
	return fmt.Sprintf(
		"I encountered an error: %v. Please try rephrasing your question or contact support if the issue persists.",
		err)
}
