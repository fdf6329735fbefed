package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/parth0774/Sales-AI-Agent/pkg/evalsuite"
	"github.com/parth0774/Sales-AI-Agent/pkg/judge"
	"github.com/parth0774/Sales-AI-Agent/pkg/llm"
	"github.com/parth0774/Sales-AI-Agent/pkg/logger"
)

const (
	defaultInPath          = "evals/responses.json"
	defaultOutPath         = "evals/report.csv"
	defaultJudgeModel      = "claude-sonnet-4-5"
	defaultMaxOutputTokens = 1024
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	inFlag := flag.String("in", defaultInPath, "path to the generated responses JSON")
	outFlag := flag.String("out", defaultOutPath, "path to write the CSV report")
	modelFlag := flag.String("model", defaultJudgeModel, "Anthropic model for judging")
	workersFlag := flag.Int("workers", 0, "number of records judged concurrently (0 for default)")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	responses, err := evalsuite.LoadResponses(*inFlag)
	if err != nil {
		return fmt.Errorf("failed to load responses: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("received signal", "signal", sig.String())
		cancel()
	}()

	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))

	j, err := judge.New(judge.Config{
		Logger:    log,
		Completer: llm.NewAnthropicCompleter(client, anthropic.Model(*modelFlag), defaultMaxOutputTokens),
	})
	if err != nil {
		return fmt.Errorf("failed to create judge: %w", err)
	}

	ev, err := evalsuite.NewEvaluator(&evalsuite.EvaluatorConfig{
		Logger:  log,
		Judge:   j,
		Workers: *workersFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}

	log.Info("judging responses", "count", len(responses.Results), "generated_at", responses.GeneratedAt)
	scored := ev.Evaluate(ctx, responses.Results)

	if err := ev.WriteCSV(*outFlag, scored); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Info("report written", "path", *outFlag)

	ev.WriteSummary(os.Stdout, scored)
	return nil
}
