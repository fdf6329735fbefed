package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/parth0774/Sales-AI-Agent/pkg/agent"
	"github.com/parth0774/Sales-AI-Agent/pkg/dataset"
	"github.com/parth0774/Sales-AI-Agent/pkg/duck"
	"github.com/parth0774/Sales-AI-Agent/pkg/guardrail"
	"github.com/parth0774/Sales-AI-Agent/pkg/llm"
	"github.com/parth0774/Sales-AI-Agent/pkg/logger"
	"github.com/parth0774/Sales-AI-Agent/pkg/prompts"
	"github.com/parth0774/Sales-AI-Agent/pkg/react"
	"github.com/parth0774/Sales-AI-Agent/pkg/tools"
)

const (
	defaultCSVPath         = "data/subscription_analysis.csv"
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
	// Optional; the API key may come from the environment directly.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	csvFlag := flag.String("csv", defaultCSVPath, "path to the subscription dataset CSV (or set SALES_AGENT_CSV env var)")
	modelFlag := flag.String("model", defaultModel, "Anthropic model for the reasoning loop")
	guardrailModelFlag := flag.String("guardrail-model", defaultGuardrailModel, "Anthropic model for the semantic guardrail check")
	maxRoundsFlag := flag.Int("max-rounds", 0, "maximum tool-calling rounds per query (0 for default)")
	flag.Parse()

	if envCSV := os.Getenv("SALES_AGENT_CSV"); envCSV != "" {
		*csvFlag = envCSV
	}

	log := logger.New(*verboseFlag)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
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
	sum := ds.Summary()
	log.Info("dataset loaded", "path", *csvFlag, "rows", sum.Rows, "columns", len(sum.Columns))

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

	systemPrompt := prompts.BuildSystemPrompt(p.Policy, sum)
	llmClient := react.NewAnthropicClient(client, anthropic.Model(*modelFlag), defaultMaxOutputTokens, systemPrompt)

	reactAgent, err := react.NewAgent(&react.Config{
		Logger:             log,
		LLM:                llmClient,
		ToolClient:         tools.NewSubscriptionQueryTool(ds, log),
		MaxRounds:          *maxRoundsFlag,
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

	fmt.Println("Sales Support Agent. Ask about subscriptions, revenue, or usage. Type 'exit' to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		response := a.Query(ctx, line)
		fmt.Printf("\nAgent: %s\n", response)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
