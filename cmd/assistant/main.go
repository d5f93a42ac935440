package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parkerduff/assistant/agent"
	"github.com/parkerduff/assistant/agent/terminal"
	"github.com/parkerduff/assistant/config"
	"github.com/parkerduff/assistant/llm"
	"github.com/parkerduff/assistant/mcpclient"
)

var (
	providerFlag string
	modelFlag    string
	verboseFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Interactive assistant backed by an MCP tool server",
	Long: `Assistant is an interactive CLI agent. It connects to one MCP server
subprocess, lets a chat-completion model pick relevant server resources and
prompt templates for each question, and runs the model's tool calls against
the server until it produces a final answer.

Configuration is read from .assistant/config.yaml in the home and working
directories. Provider credentials come from the environment; a .env file in
the working directory is honored.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "LLM provider: anthropic, openai, bedrock, or gemini (overrides config)")
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "model name (overrides config)")
	rootCmd.Flags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// An interrupt aborts the whole session, including in-flight calls.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := llm.NewClient(ctx, cfg.Provider, cfg.Model)
	if err != nil {
		return fmt.Errorf("error initializing %s client: %w", cfg.Provider, err)
	}

	transport := mcpclient.New(mcpclient.ServerSpec{
		Name:    cfg.Server.Name,
		Command: cfg.Server.Command,
		Args:    cfg.Server.Args,
		Dir:     cfg.Server.Dir,
		Env:     cfg.Server.Env,
	}, logger)
	if err := transport.Connect(ctx); err != nil {
		return fmt.Errorf("error connecting to MCP server: %w", err)
	}
	defer func() {
		if err := transport.Disconnect(); err != nil {
			logger.Warn("failed to disconnect from MCP server", "error", err)
		}
	}()

	a := agent.New(transport, client, agent.Options{
		MaxTokens:       cfg.MaxTokens,
		HiddenResources: cfg.Context.HiddenResources,
		HiddenPrompts:   cfg.Context.HiddenPrompts,
		Logger:          logger,
	})
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("error loading server catalogs: %w", err)
	}

	return terminal.New(a, os.Stdin, os.Stdout).Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
