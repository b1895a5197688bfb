package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"accidentes-platform/internal/agent"
	"accidentes-platform/internal/config"
	"accidentes-platform/pkg/logging"
)

func main() {
	question := flag.String("q", "", "Question to ask; omit for interactive mode")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.Agent.OpenAIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENAI_API_KEY is required for the agent")
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("accidentes-agent", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)

	llm := agent.NewClient(cfg.Agent.OpenAIBaseURL, cfg.Agent.OpenAIKey, cfg.Agent.OpenAIModel)
	a := agent.NewAgent(cfg.Agent.APIBase, llm, logger)

	ctx := context.Background()

	if *question != "" {
		answer, err := a.Query(ctx, *question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(answer)
		return
	}

	// Interactive loop
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Ask about the accident data (empty line to exit):")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		answer, err := a.Query(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
