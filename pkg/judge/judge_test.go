package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func testInput() Input {
	return Input{
		Question:           "How many companies are on the Enterprise plan?",
		GoldenAnswer:       "6 companies are on the Enterprise plan.",
		AgentResponse:      "There are 6 companies on the Enterprise plan.",
		EvaluationCriteria: "The response must state the exact count.",
	}
}

func TestNew_LoadsAllRubrics(t *testing.T) {
	j, err := New(Config{Completer: &mockCompleter{}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		RubricCorrectness,
		RubricConciseness,
		RubricHallucination,
		RubricCriteriaAdherence,
	}, j.Rubrics())
}

func TestScore_ParsesVerdict(t *testing.T) {
	completer := &mockCompleter{responses: []string{`{"score": 1.0, "comment": "Exact match."}`}}
	j, err := New(Config{Completer: completer})
	require.NoError(t, err)

	result, err := j.Score(context.Background(), RubricCorrectness, testInput())
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Score)
	assert.Equal(t, "Exact match.", result.Comment)
	assert.Equal(t, 1, completer.calls)

	// The rendered correctness prompt carries the question, golden answer,
	// and response. The criteria text belongs to criteria_adherence only.
	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "Enterprise plan?")
	assert.Contains(t, prompt, "6 companies are on the Enterprise plan.")
	assert.Contains(t, prompt, "There are 6 companies")
	assert.NotContains(t, prompt, "exact count")
}

func TestScore_CriteriaAdherencePromptCarriesCriteria(t *testing.T) {
	completer := &mockCompleter{responses: []string{`{"score": 1.0, "comment": "Meets criteria."}`}}
	j, err := New(Config{Completer: completer})
	require.NoError(t, err)

	_, err = j.Score(context.Background(), RubricCriteriaAdherence, testInput())
	require.NoError(t, err)

	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "exact count")
	assert.Contains(t, prompt, "Enterprise plan?")
	assert.Contains(t, prompt, "There are 6 companies")
}

func TestScore_StripsMarkdownFence(t *testing.T) {
	completer := &mockCompleter{responses: []string{
		"```json\n{\"score\": 0.5, \"comment\": \"Partially correct.\"}\n```",
	}}
	j, err := New(Config{Completer: completer})
	require.NoError(t, err)

	result, err := j.Score(context.Background(), RubricConciseness, testInput())
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Score)
}

func TestScore_RejectsScoreOutsideChoices(t *testing.T) {
	completer := &mockCompleter{responses: []string{`{"score": 0.7, "comment": "Close enough."}`}}
	j, err := New(Config{Completer: completer, MaxRetries: 1})
	require.NoError(t, err)

	_, err = j.Score(context.Background(), RubricHallucination, testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed set")
}

func TestScore_RejectsInvalidJSON(t *testing.T) {
	completer := &mockCompleter{responses: []string{"the answer looks fine to me"}}
	j, err := New(Config{Completer: completer, MaxRetries: 1})
	require.NoError(t, err)

	_, err = j.Score(context.Background(), RubricCorrectness, testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid verdict JSON")
}

func TestScore_RetriesCompleterFailure(t *testing.T) {
	completer := &mockCompleter{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []string{"", `{"score": 0.8, "comment": "Minor omission."}`},
	}
	j, err := New(Config{Completer: completer, MaxRetries: 2})
	require.NoError(t, err)

	result, err := j.Score(context.Background(), RubricCriteriaAdherence, testInput())
	require.NoError(t, err)
	assert.Equal(t, 0.8, result.Score)
	assert.Equal(t, 2, completer.calls)
}

func TestScore_UnknownRubric(t *testing.T) {
	j, err := New(Config{Completer: &mockCompleter{}})
	require.NoError(t, err)

	_, err = j.Score(context.Background(), "helpfulness", testInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rubric")
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"score": 1.0}`, `{"score": 1.0}`},
		{"json fence", "```json\n{\"score\": 1.0}\n```", `{"score": 1.0}`},
		{"bare fence", "```\n{\"score\": 1.0}\n```", `{"score": 1.0}`},
		{"surrounding whitespace", "  ```json\n{\"score\": 1.0}\n```  ", `{"score": 1.0}`},
		{"unclosed fence", "```json\n{\"score\": 1.0}", "```json\n{\"score\": 1.0}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripMarkdownCodeBlock(tt.in))
		})
	}
}

func TestParseVerdict_AllChoicesAccepted(t *testing.T) {
	j, err := New(Config{Completer: &mockCompleter{}})
	require.NoError(t, err)

	for _, score := range []string{"0.0", "0.5", "0.8", "1.0"} {
		result, err := j.parseVerdict(`{"score": ` + score + `, "comment": "ok"}`)
		require.NoError(t, err, "score %s should be accepted", score)
		assert.Equal(t, "ok", result.Comment)
	}
}

func TestRubricPromptsRequestJSON(t *testing.T) {
	// Every rubric prompt must instruct the model to respond with the JSON
	// verdict shape parseVerdict expects.
	j, err := New(Config{Completer: &mockCompleter{}})
	require.NoError(t, err)

	for _, name := range j.Rubrics() {
		completer := &mockCompleter{responses: []string{`{"score": 1.0, "comment": "ok"}`}}
		j2, err := New(Config{Completer: completer})
		require.NoError(t, err)

		_, err = j2.Score(context.Background(), name, testInput())
		require.NoError(t, err)
		assert.True(t, strings.Contains(completer.prompts[0], "score"), "rubric %s prompt should mention score", name)
		assert.True(t, strings.Contains(completer.prompts[0], "comment"), "rubric %s prompt should mention comment", name)
	}
}
