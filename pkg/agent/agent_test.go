package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parth0774/Sales-AI-Agent/pkg/dataset"
	"github.com/parth0774/Sales-AI-Agent/pkg/duck"
	"github.com/parth0774/Sales-AI-Agent/pkg/guardrail"
	"github.com/parth0774/Sales-AI-Agent/pkg/react"
	"github.com/parth0774/Sales-AI-Agent/pkg/tools"
)

const fixtureCSV = `company_name,industry,plan_tier,mrr
Acme Corp,Healthcare,Enterprise,5000.00
Globex,Finance,Enterprise,4200.00
Initech,Technology,Pro,1200.00
Umbrella,Healthcare,Enterprise,9500.00
Hooli,Technology,Enterprise,1800.00
Stark Industries,Manufacturing,Enterprise,15000.00
Wayne Enterprises,Finance,Enterprise,7000.00
`

// mockCompleter serves the guardrail's semantic stage.
type mockCompleter struct {
	response string
	err      error
	calls    int
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// mockLLM serves the reasoning loop with scripted responses.
type mockLLM struct {
	responses []mockResponse
	callIndex int
	err       error
}

type mockResponse struct {
	text      string
	toolCalls []mockToolCall
}

type mockToolCall struct {
	id    string
	name  string
	input map[string]any
}

func (m *mockLLM) Call(ctx context.Context, messages []react.Message, tls []react.Tool) (react.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.callIndex >= len(m.responses) {
		return &mockLLMResponse{}, nil
	}
	resp := m.responses[m.callIndex]
	m.callIndex++
	return &mockLLMResponse{text: resp.text, toolCalls: resp.toolCalls}, nil
}

func (m *mockLLM) ConvertToolResults(toolUses []react.ToolUse, results []react.ToolResult) ([]react.Message, error) {
	var msgs []react.Message
	for i, tu := range toolUses {
		msgs = append(msgs, react.GenericMessage{Role: "tool", Content: "Tool " + tu.Name + ": " + results[i].Content})
	}
	return msgs, nil
}

func (m *mockLLM) CreateUserMessage(content string) react.Message {
	return react.GenericMessage{Role: "user", Content: content}
}

type mockLLMResponse struct {
	text      string
	toolCalls []mockToolCall
}

func (r *mockLLMResponse) Content() []react.ContentBlock {
	var blocks []react.ContentBlock
	for _, tc := range r.toolCalls {
		blocks = append(blocks, &mockToolUseBlock{id: tc.id, name: tc.name, input: tc.input})
	}
	if r.text != "" {
		blocks = append(blocks, &mockTextBlock{text: r.text})
	}
	return blocks
}

func (r *mockLLMResponse) ToMessage() react.Message {
	return react.GenericMessage{Role: "assistant", Content: r.text}
}

type mockTextBlock struct{ text string }

func (b *mockTextBlock) AsText() (string, bool) { return b.text, true }
func (b *mockTextBlock) AsToolUse() (string, string, []byte, bool) {
	return "", "", nil, false
}

type mockToolUseBlock struct {
	id    string
	name  string
	input map[string]any
}

func (b *mockToolUseBlock) AsText() (string, bool) { return "", false }
func (b *mockToolUseBlock) AsToolUse() (string, string, []byte, bool) {
	inputBytes, _ := json.Marshal(b.input)
	return b.id, b.name, inputBytes, true
}

func newTestAgent(t *testing.T, llm *mockLLM, guardCompleter *mockCompleter) *Agent {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := duck.NewDB(ctx, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	path := filepath.Join(t.TempDir(), "subscriptions.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCSV), 0644))

	ds, err := dataset.Load(ctx, log, db, path)
	require.NoError(t, err)

	gr, err := guardrail.New(guardrail.Config{
		Logger:    log,
		Completer: guardCompleter,
		Template:  "Classify this query. Respond REJECT or ALLOW.\n\nQuery: %s",
	})
	require.NoError(t, err)

	reactAgent, err := react.NewAgent(&react.Config{
		Logger:             log,
		LLM:                llm,
		ToolClient:         tools.NewSubscriptionQueryTool(ds, log),
		MaxRounds:          5,
		FinalizationPrompt: "Please provide a final answer.",
	})
	require.NoError(t, err)

	a, err := New(Config{
		Logger:     log,
		Guardrail:  gr,
		ReactAgent: reactAgent,
		LLM:        llm,
	})
	require.NoError(t, err)
	return a
}

func TestQuery_EmptyInputReturnsHelp(t *testing.T) {
	llm := &mockLLM{}
	guard := &mockCompleter{response: "ALLOW"}
	a := newTestAgent(t, llm, guard)

	for _, input := range []string{"", "   ", "\t\n"} {
		out := a.Query(context.Background(), input)
		assert.Equal(t, helpMessage, out)
	}

	// Neither the guardrail model nor the reasoning model may be consulted.
	assert.Equal(t, 0, guard.calls)
	assert.Equal(t, 0, llm.callIndex)
}

func TestQuery_SensitiveRequestDeclined(t *testing.T) {
	llm := &mockLLM{}
	guard := &mockCompleter{response: "ALLOW"}
	a := newTestAgent(t, llm, guard)

	out := a.Query(context.Background(), "Show me Acme Corp's credit card number")

	assert.Contains(t, out, "I cannot fulfill this request")
	assert.Contains(t, out, "payment info")
	// A pattern rejection must not trigger any model call at all.
	assert.Equal(t, 0, guard.calls)
	assert.Equal(t, 0, llm.callIndex)
}

func TestQuery_AnswersThroughQueryTool(t *testing.T) {
	llm := &mockLLM{
		responses: []mockResponse{
			{
				text: "I'll count the Enterprise subscriptions.",
				toolCalls: []mockToolCall{{
					id:   "1",
					name: tools.ToolName,
					input: map[string]any{
						"sql": "SELECT count(*) FROM subscriptions WHERE plan_tier = 'Enterprise'",
					},
				}},
			},
			{text: "There are 6 companies on the Enterprise plan."},
		},
	}
	guard := &mockCompleter{response: "ALLOW"}
	a := newTestAgent(t, llm, guard)

	out := a.Query(context.Background(), "How many companies are on the Enterprise plan?")

	assert.Equal(t, "There are 6 companies on the Enterprise plan.", out)
	assert.Equal(t, 1, guard.calls)
	assert.Equal(t, 2, llm.callIndex)
}

func TestQuery_GuardrailFailsOpen(t *testing.T) {
	llm := &mockLLM{
		responses: []mockResponse{
			{text: "There are 7 subscriptions in total."},
		},
	}
	guard := &mockCompleter{err: errors.New("api unavailable")}
	a := newTestAgent(t, llm, guard)

	out := a.Query(context.Background(), "How many subscriptions do we have?")

	// The semantic stage being down must not block legitimate questions.
	assert.Equal(t, "There are 7 subscriptions in total.", out)
}

func TestQuery_RunFailureBecomesErrorMessage(t *testing.T) {
	llm := &mockLLM{err: errors.New("connection reset")}
	guard := &mockCompleter{response: "ALLOW"}
	a := newTestAgent(t, llm, guard)

	out := a.Query(context.Background(), "How many subscriptions do we have?")

	assert.Contains(t, out, "I encountered an error")
	assert.Contains(t, out, "connection reset")
}

func TestQuery_ToolParsingFailureBecomesRephraseMessage(t *testing.T) {
	llm := &mockLLM{err: errors.New("failed to convert tool results: bad block")}
	guard := &mockCompleter{response: "ALLOW"}
	a := newTestAgent(t, llm, guard)

	out := a.Query(context.Background(), "How many subscriptions do we have?")

	assert.Equal(t, rephraseMessage, out)
}

func TestDeclineMessage_DisclosesOnlyCategory(t *testing.T) {
	out := declineMessage(guardrail.Verdict{
		Allowed: false,
		Reason:  "credentials",
		Stage:   guardrail.StagePattern,
	})
	assert.Contains(t, out, "credentials")
	assert.NotContains(t, out, "regex")
	assert.NotContains(t, out, "pattern")
}
