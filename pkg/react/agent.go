package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	defaultMaxContextTokens = 20000
	defaultMaxRounds        = 10

	// maxToolErrorRetries bounds how many times we nudge the model to retry
	// after a tool error instead of giving up.
	maxToolErrorRetries = 2
)

// retryPrompt is injected when the model stops calling tools right after a
// tool error, to push it to fix the query rather than ask for clarification.
const retryPrompt = "The previous query returned an error. Analyze the error message, fix the SQL query, " +
	"and run it again using the query tool. Do not ask for clarification."

// Config is the configuration for the Agent.
type Config struct {
	Logger           *slog.Logger
	LLM              LLMClient
	ToolClient       ToolClient
	MaxRounds        int
	MaxContextTokens int
	// FinalizationPrompt is injected when the round budget runs out.
	FinalizationPrompt string
	// SummaryPrompt is the template for compacting conversation history
	// (with a %s placeholder for the conversation text).
	SummaryPrompt string
}

func (cfg *Config) Validate() error {
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.ToolClient == nil {
		return errors.New("tool client is required")
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxRounds < 0 {
		return errors.New("max rounds must be greater than 0")
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = defaultMaxContextTokens
	}
	if cfg.MaxContextTokens < 0 {
		return errors.New("max context tokens must be greater than 0")
	}
	if cfg.FinalizationPrompt == "" {
		return errors.New("finalization prompt is required")
	}
	return nil
}

// Agent runs the tool-calling reasoning loop: call the LLM, execute any tool
// requests, feed results back, repeat until the model produces a plain answer
// or the round budget runs out.
type Agent struct {
	log *slog.Logger
	cfg *Config
}

// NewAgent creates a new Agent.
func NewAgent(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run executes the tool-calling loop. Output, when non-nil, receives the
// final answer text as it is produced.
func (a *Agent) Run(ctx context.Context, initialMessages []Message, output io.Writer) (*RunResult, error) {
	msgs := make([]Message, len(initialMessages))
	copy(msgs, initialMessages)

	fullConversation := make([]Message, len(initialMessages))
	copy(fullConversation, initialMessages)

	tools, err := a.cfg.ToolClient.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	var lastToolHadError bool
	var retryCount int

	for round := 0; round < a.cfg.MaxRounds; round++ {
		roundNum := round + 1
		if a.log != nil {
			a.log.Debug("agent: starting round", "round", roundNum, "max_rounds", a.cfg.MaxRounds)
		}

		msgs = a.compactIfNeeded(ctx, msgs, tools, roundNum)

		isLastRound := round == a.cfg.MaxRounds-1
		if isLastRound && a.cfg.FinalizationPrompt != "" {
			if a.log != nil {
				a.log.Info("agent: injecting finalization prompt on last round", "round", roundNum)
			}
			finalizationMsg := a.cfg.LLM.CreateUserMessage(a.cfg.FinalizationPrompt)
			msgs = append(msgs, finalizationMsg)
			fullConversation = append(fullConversation, finalizationMsg)
		}

		response, err := a.cfg.LLM.Call(ctx, msgs, tools)
		if err != nil {
			return nil, fmt.Errorf("failed to get response: %w", err)
		}

		assistantMsg := response.ToMessage()
		msgs = append(msgs, assistantMsg)
		fullConversation = append(fullConversation, assistantMsg)

		toolUses := a.extractToolUses(response.Content())
		if len(toolUses) == 0 {
			// If the model gave up right after a tool error, nudge it to fix
			// the query instead of accepting a non-answer.
			if lastToolHadError && retryCount < maxToolErrorRetries && !isLastRound {
				retryCount++
				if a.log != nil {
					a.log.Info("agent: no tool calls after error, injecting retry prompt", "round", roundNum, "retry", retryCount)
				}
				retryMsg := a.cfg.LLM.CreateUserMessage(retryPrompt)
				msgs = append(msgs, retryMsg)
				fullConversation = append(fullConversation, retryMsg)
				lastToolHadError = false
				continue
			}

			return a.finish(response, fullConversation, output), nil
		}

		if isLastRound {
			if a.log != nil {
				a.log.Info("agent: round budget exhausted, returning response despite tool calls", "round", roundNum, "tool_calls", len(toolUses))
			}
			return a.finish(response, fullConversation, output), nil
		}

		if a.log != nil {
			a.log.Debug("agent: executing tool calls", "round", roundNum, "count", len(toolUses))
		}

		toolResults := a.executeTools(ctx, toolUses)

		lastToolHadError = false
		for _, tr := range toolResults {
			// Only the explicit IsError flag counts; matching on the word
			// "error" in content causes false positives.
			if tr.IsError {
				lastToolHadError = true
				break
			}
		}

		toolResultMsgs, err := a.cfg.LLM.ConvertToolResults(toolUses, toolResults)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool results: %w", err)
		}

		msgs = append(msgs, toolResultMsgs...)
		fullConversation = append(fullConversation, toolResultMsgs...)
	}

	return nil, fmt.Errorf("exceeded maximum rounds (%d)", a.cfg.MaxRounds)
}

// finish collects the response's text blocks into the final result.
func (a *Agent) finish(response Response, fullConversation []Message, output io.Writer) *RunResult {
	var finalText strings.Builder
	for _, blk := range response.Content() {
		if text, ok := blk.AsText(); ok && text != "" {
			finalText.WriteString(text)
			if output != nil {
				fmt.Fprint(output, text)
			}
		}
	}
	if output != nil {
		fmt.Fprintln(output)
	}
	return &RunResult{
		FinalText:        strings.TrimSpace(finalText.String()),
		FullConversation: fullConversation,
	}
}

// extractToolUses extracts tool use requests from response content blocks.
func (a *Agent) extractToolUses(content []ContentBlock) []ToolUse {
	var toolUses []ToolUse
	for _, blk := range content {
		id, name, inputBytes, ok := blk.AsToolUse()
		if !ok || id == "" || name == "" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal(inputBytes, &input); err != nil {
			continue
		}
		toolUses = append(toolUses, ToolUse{
			ID:    id,
			Name:  name,
			Input: input,
		})
	}
	return toolUses
}

// executeTools runs tool calls in parallel and returns results in call order.
// Tool failures are folded into error-flagged results, never returned as
// errors: the model must always receive text it can reason about.
func (a *Agent) executeTools(ctx context.Context, toolUses []ToolUse) []ToolResult {
	type outcome struct {
		out   string
		isErr bool
		err   error
	}

	outcomes := make([]outcome, len(toolUses))
	var wg sync.WaitGroup
	for i, tu := range toolUses {
		wg.Add(1)
		go func(idx int, toolUse ToolUse) {
			defer wg.Done()
			out, isErr, callErr := a.cfg.ToolClient.CallToolText(ctx, toolUse.Name, toolUse.Input)
			outcomes[idx] = outcome{out: out, isErr: isErr, err: callErr}
		}(i, tu)
	}
	wg.Wait()

	results := make([]ToolResult, 0, len(toolUses))
	for i, oc := range outcomes {
		if oc.err != nil {
			if a.log != nil {
				a.log.Error("agent: tool execution error", "error", oc.err, "tool_id", toolUses[i].ID)
			}
			results = append(results, ToolResult{
				ID:      toolUses[i].ID,
				Content: fmt.Sprintf("Error: %v", oc.err),
				IsError: true,
			})
			continue
		}
		content := oc.out
		if oc.isErr {
			content = fmt.Sprintf("Error: %s", oc.out)
		}
		results = append(results, ToolResult{
			ID:      toolUses[i].ID,
			Content: content,
			IsError: oc.isErr,
		})
	}
	return results
}

// compactIfNeeded summarizes older conversation history when the estimated
// context size exceeds the configured threshold.
func (a *Agent) compactIfNeeded(ctx context.Context, msgs []Message, tools []Tool, roundNum int) []Message {
	if a.cfg.SummaryPrompt == "" {
		return msgs
	}

	tokens := a.estimateContextTokens(msgs, tools)
	if tokens <= a.cfg.MaxContextTokens {
		return msgs
	}

	const keepRecent = 10
	if len(msgs) <= keepRecent+1 {
		if a.log != nil {
			a.log.Warn("agent: context exceeds threshold but too few messages to compact",
				"round", roundNum, "tokens_est", tokens, "threshold", a.cfg.MaxContextTokens)
		}
		return msgs
	}

	if a.log != nil {
		a.log.Info("agent: compacting conversation", "round", roundNum,
			"tokens_est", tokens, "threshold", a.cfg.MaxContextTokens)
	}

	compacted, err := a.summarizeMessages(ctx, msgs, keepRecent)
	if err != nil {
		if a.log != nil {
			a.log.Warn("agent: failed to compact conversation", "round", roundNum, "error", err)
		}
		return msgs
	}

	if a.log != nil {
		a.log.Info("agent: conversation compacted",
			"round", roundNum,
			"original_messages", len(msgs),
			"compacted_messages", len(compacted),
			"new_tokens_est", a.estimateContextTokens(compacted, tools))
	}
	return compacted
}

// estimateContextTokens estimates the context size in tokens using ~4
// characters per token, the provider's approximate ratio for English text.
func (a *Agent) estimateContextTokens(msgs []Message, tools []Tool) int {
	chars := 0
	for _, msg := range msgs {
		if jsonData, err := json.Marshal(msg.ToParam()); err == nil {
			chars += len(jsonData)
		}
	}
	for _, tool := range tools {
		if jsonData, err := json.Marshal(tool); err == nil {
			chars += len(jsonData)
		}
	}
	return chars / 4
}

// summarizeMessages keeps the first message and the last keepRecent messages
// and replaces everything in between with an LLM-generated summary.
func (a *Agent) summarizeMessages(ctx context.Context, msgs []Message, keepRecent int) ([]Message, error) {
	toSummarize := msgs[1 : len(msgs)-keepRecent]

	var conversationText strings.Builder
	for i, msg := range toSummarize {
		if jsonData, err := json.Marshal(msg.ToParam()); err == nil {
			conversationText.WriteString(fmt.Sprintf("Message %d: %s\n", i+1, string(jsonData)))
		}
	}

	summaryPrompt := fmt.Sprintf(a.cfg.SummaryPrompt, conversationText.String())
	response, err := a.cfg.LLM.Call(ctx, []Message{a.cfg.LLM.CreateUserMessage(summaryPrompt)}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	var summaryText strings.Builder
	for _, blk := range response.Content() {
		if text, ok := blk.AsText(); ok && text != "" {
			summaryText.WriteString(text)
		}
	}

	summaryMsg := a.cfg.LLM.CreateUserMessage(fmt.Sprintf("[Previous conversation summary]: %s", summaryText.String()))

	compacted := make([]Message, 0, 2+keepRecent)
	compacted = append(compacted, msgs[0])
	compacted = append(compacted, summaryMsg)
	compacted = append(compacted, msgs[len(msgs)-keepRecent:]...)
	return compacted, nil
}
