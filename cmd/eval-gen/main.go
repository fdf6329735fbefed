package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/parth0774/Sales-AI-Agent/pkg/agent"
	"github.com/parth0774/Sales-AI-Agent/pkg/dataset"
	"github.com/parth0774/Sales-AI-Agent/pkg/duck"
	"github.com/parth0774/Sales-AI-Agent/pkg/evalsuite"
	"github.com/parth0774/Sales-AI-Agent/pkg/guardrail"
	"github.com/parth0774/Sales-AI-Agent/pkg/llm"
	"github.com/parth0774/Sales-AI-Agent/pkg/logger"
	"github.com/parth0774/Sales-AI-Agent/pkg/prompts"
	"github.com/parth0774/Sales-AI-Agent/pkg/react"
	"github.com/parth0774/Sales-AI-Agent/pkg/tools"
)

const (
	defaultCSVPath         = "data/subscription_analysis.csv"
	defaultQuestionsPath   = "evals/questions.json"
	defaultOutPath         = "evals/responses.json"
	defaultModel           = "claude-sonnet-4-5"
	defaultGuardrailModel  = "claude-3-5-haiku-20241022"
	defaultMaxOutputTokens = 4096
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
	csvFlag := flag.String("csv", defaultCSVPath, "path to the subscription dataset CSV")
	questionsFlag := flag.String("questions", defaultQuestionsPath, "path to the evaluation question set JSON")
	outFlag := flag.String("out", defaultOutPath, "path to write the generated responses JSON")
	modelFlag := flag.String("model", defaultModel, "Anthropic model for the reasoning loop")
	guardrailModelFlag := flag.String("guardrail-model", defaultGuardrailModel, "Anthropic model for the semantic guardrail check")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	questions, err := evalsuite.LoadQuestions(*questionsFlag)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
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

	db, err := duck.NewDB(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}
	}()

	ds, err := dataset.Load(ctx, log, db, *csvFlag)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	p, err := prompts.Load()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	client := anthropic.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))

	gr, err := guardrail.New(guardrail.Config{
		Logger:    log,
		Completer: llm.NewAnthropicCompleter(client, anthropic.Model(*guardrailModelFlag), 256),
		Template:  p.Guardrail,
	})
	if err != nil {
		return fmt.Errorf("failed to create guardrail: %w", err)
	}

	systemPrompt := prompts.BuildSystemPrompt(p.Policy, ds.Summary())
	llmClient := react.NewAnthropicClient(client, anthropic.Model(*modelFlag), defaultMaxOutputTokens, systemPrompt)

	reactAgent, err := react.NewAgent(&react.Config{
		Logger:             log,
		LLM:                llmClient,
		ToolClient:         tools.NewSubscriptionQueryTool(ds, log),
		FinalizationPrompt: p.Finalization,
		SummaryPrompt:      p.Summary,
	})
	if err != nil {
		return fmt.Errorf("failed to create reasoning agent: %w", err)
	}

	a, err := agent.New(agent.Config{
		Logger:     log,
		Guardrail:  gr,
		ReactAgent: reactAgent,
		LLM:        llmClient,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	gen, err := evalsuite.NewGenerator(&evalsuite.GeneratorConfig{
		Logger: log,
		Agent:  a,
		Clock:  clockwork.NewRealClock(),
	})
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	file, err := gen.Generate(ctx, questions)
	if err != nil {
		return fmt.Errorf("failed to generate responses: %w", err)
	}

	if err := evalsuite.WriteResponses(*outFlag, file); err != nil {
		return fmt.Errorf("failed to write responses: %w", err)
	}
	log.Info("responses written", "path", *outFlag, "count", len(file.Results))
	return nil
}
