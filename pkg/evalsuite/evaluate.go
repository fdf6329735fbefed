package evalsuite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/olekukonko/tablewriter"

	"github.com/parth0774/Sales-AI-Agent/pkg/judge"
)

const defaultWorkers = 4

// RubricScore is one rubric's outcome for one record. A failed judge call
// leaves the score empty and records the error in the comment.
type RubricScore struct {
	Score   string
	Comment string
}

// Scored is one fully judged response record.
type Scored struct {
	Record ResponseRecord
	// Scores is keyed by rubric name.
	Scores map[string]RubricScore
}

// EvaluatorConfig configures batch judging of a response file.
type EvaluatorConfig struct {
	Logger  *slog.Logger
	Judge   *judge.Judge
	Workers int
}

func (c *EvaluatorConfig) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Judge == nil {
		return fmt.Errorf("judge is required")
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	return nil
}

// Evaluator runs the full rubric set over every record in a response file.
type Evaluator struct {
	log     *slog.Logger
	judge   *judge.Judge
	workers int
}

func NewEvaluator(cfg *EvaluatorConfig) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	return &Evaluator{
		log:     cfg.Logger,
		judge:   cfg.Judge,
		workers: cfg.Workers,
	}, nil
}

// Evaluate judges every record along every rubric. Records are scored
// concurrently; a failed judge call is recorded on its cell and never aborts
// the batch. Results come back in input order.
func (e *Evaluator) Evaluate(ctx context.Context, records []ResponseRecord) []Scored {
	scored := make([]Scored, len(records))

	pool := pond.NewPool(e.workers)
	for i, rec := range records {
		pool.Submit(func() {
			scored[i] = e.scoreRecord(ctx, i, rec)
		})
	}
	pool.StopAndWait()

	return scored
}

func (e *Evaluator) scoreRecord(ctx context.Context, index int, rec ResponseRecord) Scored {
	in := judge.Input{
		Question:           rec.Question,
		GoldenAnswer:       rec.GoldenAnswer,
		AgentResponse:      rec.AgentResponse,
		EvaluationCriteria: rec.EvaluationCriteria,
	}

	scores := make(map[string]RubricScore, len(e.judge.Rubrics()))
	for _, name := range e.judge.Rubrics() {
		result, err := e.judge.Score(ctx, name, in)
		if err != nil {
			e.log.Warn("Judge call failed", "record", index+1, "rubric", name, "error", err)
			scores[name] = RubricScore{Comment: fmt.Sprintf("judge error: %v", err)}
			continue
		}
		scores[name] = RubricScore{
			Score:   strconv.FormatFloat(result.Score, 'f', -1, 64),
			Comment: result.Comment,
		}
	}
	e.log.Info("Record judged", "record", index+1, "question", rec.Question)
	return Scored{Record: rec, Scores: scores}
}

// WriteCSV writes the judged records to a CSV report. Columns are the record
// fields followed by a score and comment pair per rubric, in rubric order.
func (e *Evaluator) WriteCSV(path string, scored []Scored) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"question", "golden_answer", "agent_response", "evaluation_criteria"}
	for _, name := range e.judge.Rubrics() {
		header = append(header, name+"_score", name+"_comment")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	for _, s := range scored {
		row := []string{s.Record.Question, s.Record.GoldenAnswer, s.Record.AgentResponse, s.Record.EvaluationCriteria}
		for _, name := range e.judge.Rubrics() {
			cell := s.Scores[name]
			row = append(row, cell.Score, cell.Comment)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// WriteSummary renders a per-rubric average score table. Failed judge calls
// are excluded from averages and counted separately.
func (e *Evaluator) WriteSummary(out io.Writer, scored []Scored) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Rubric", "Avg Score", "Scored", "Errors"})

	for _, name := range e.judge.Rubrics() {
		var sum float64
		var n, errs int
		for _, s := range scored {
			cell := s.Scores[name]
			if cell.Score == "" {
				errs++
				continue
			}
			v, err := strconv.ParseFloat(cell.Score, 64)
			if err != nil {
				errs++
				continue
			}
			sum += v
			n++
		}
		avg := "-"
		if n > 0 {
			avg = strconv.FormatFloat(sum/float64(n), 'f', 2, 64)
		}
		table.Append([]string{name, avg, strconv.Itoa(n), strconv.Itoa(errs)})
	}

	table.Render()
}
