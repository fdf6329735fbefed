package judge

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gopkg.in/yaml.v3"

	"github.com/parth0774/Sales-AI-Agent/pkg/llm"
)

// Rubric names, in output order.
const (
	RubricCorrectness       = "correctness"
	RubricConciseness       = "conciseness"
	RubricHallucination     = "hallucination"
	RubricCriteriaAdherence = "criteria_adherence"
)

//go:embed rubrics.yaml
var rubricsYAML []byte

// Input is one evaluation tuple handed to a rubric.
type Input struct {
	Question           string
	GoldenAnswer       string
	AgentResponse      string
	EvaluationCriteria string
}

// Result is one rubric's verdict on one input.
type Result struct {
	Score   float64
	Comment string
}

type rubricSpec struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

type rubricsFile struct {
	Choices []float64    `yaml:"choices"`
	Rubrics []rubricSpec `yaml:"rubrics"`
}

type rubric struct {
	name string
	tmpl *template.Template
}

// Config configures a Judge.
type Config struct {
	Logger *slog.Logger
	// Completer is the judge language model. It scores answers; it never
	// produces them.
	Completer llm.Completer
	// MaxRetries bounds retries of failed completer calls per rubric.
	MaxRetries uint64
}

func (cfg *Config) Validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return nil
}

// Judge scores agent responses against reference answers along the fixed
// rubric set loaded from the embedded configuration.
type Judge struct {
	log        *slog.Logger
	completer  llm.Completer
	maxRetries uint64
	rubrics    []rubric
	choices    []float64
}

// New creates a Judge from the embedded rubric configuration.
func New(cfg Config) (*Judge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate judge config: %w", err)
	}

	var file rubricsFile
	if err := yaml.Unmarshal(rubricsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rubric config: %w", err)
	}
	if len(file.Rubrics) == 0 {
		return nil, errors.New("rubric config contains no rubrics")
	}
	if len(file.Choices) == 0 {
		return nil, errors.New("rubric config contains no score choices")
	}

	j := &Judge{
		log:        cfg.Logger,
		completer:  cfg.Completer,
		maxRetries: cfg.MaxRetries,
		choices:    file.Choices,
	}
	for _, spec := range file.Rubrics {
		tmpl, err := template.New(spec.Name).Parse(spec.Prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template for rubric %s: %w", spec.Name, err)
		}
		j.rubrics = append(j.rubrics, rubric{name: spec.Name, tmpl: tmpl})
	}
	return j, nil
}

// Rubrics returns the rubric names in output order.
func (j *Judge) Rubrics() []string {
	names := make([]string, len(j.rubrics))
	for i, r := range j.rubrics {
		names[i] = r.name
	}
	return names
}

// Score evaluates one input along one rubric. The completer call is retried
// with exponential backoff before giving up.
func (j *Judge) Score(ctx context.Context, rubricName string, in Input) (Result, error) {
	var r *rubric
	for i := range j.rubrics {
		if j.rubrics[i].name == rubricName {
			r = &j.rubrics[i]
			break
		}
	}
	if r == nil {
		return Result{}, fmt.Errorf("unknown rubric: %s", rubricName)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, in); err != nil {
		return Result{}, fmt.Errorf("failed to build prompt for rubric %s: %w", rubricName, err)
	}

	start := time.Now()
	var response string
	op := func() error {
		var err error
		response, err = j.completer.Complete(ctx, buf.String())
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), j.maxRetries), ctx))
	if err != nil {
		return Result{}, fmt.Errorf("judge call failed for rubric %s: %w", rubricName, err)
	}

	result, err := j.parseVerdict(response)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse verdict for rubric %s: %w", rubricName, err)
	}

	if j.log != nil {
		j.log.Info("judge: rubric scored", "rubric", rubricName, "score", result.Score, "duration", time.Since(start))
	}
	return result, nil
}

type verdictPayload struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

// parseVerdict decodes the judge model's JSON verdict and validates the score
// against the ordinal choice set.
func (j *Judge) parseVerdict(response string) (Result, error) {
	content := stripMarkdownCodeBlock(response)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Result{}, fmt.Errorf("invalid verdict JSON: %w", err)
	}

	valid := false
	for _, c := range j.choices {
		if payload.Score == c {
			valid = true
			break
		}
	}
	if !valid {
		return Result{}, fmt.Errorf("score %v is not in the allowed set %v", payload.Score, j.choices)
	}

	return Result{Score: payload.Score, Comment: payload.Comment}, nil
}

// stripMarkdownCodeBlock removes a surrounding markdown code fence if the
// model wrapped its JSON in one.
func stripMarkdownCodeBlock(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	firstNewline := strings.Index(content, "\n")
	if firstNewline == -1 {
		return content
	}
	closing := strings.LastIndex(content, "```")
	if closing == -1 || closing <= firstNewline {
		return content
	}
	return strings.TrimSpace(content[firstNewline+1 : closing])
}
