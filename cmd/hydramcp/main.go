// =============================================================================
// HydraMCP entry point
// =============================================================================
// Multi-model orchestration MCP server: one stdio JSON-RPC endpoint
// letting a coding agent consult other models through a uniform tool
// surface (ask_model, compare_models, consensus, synthesize,
// analyze_file, smart_read, session_recap, list_models).
//
// Usage:
//
//	hydramcp serve     # run the JSON-RPC server on stdio
//	hydramcp version   # print version information
//	hydramcp health     # one-shot backend health check, exit 0/1
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JustHereToHelp/HydraMCP/backend"
	"github.com/JustHereToHelp/HydraMCP/backend/anthropic"
	"github.com/JustHereToHelp/HydraMCP/backend/gemini"
	"github.com/JustHereToHelp/HydraMCP/backend/multi"
	"github.com/JustHereToHelp/HydraMCP/backend/openaicompat"
	"github.com/JustHereToHelp/HydraMCP/backend/subscription"
	"github.com/JustHereToHelp/HydraMCP/config"
	"github.com/JustHereToHelp/HydraMCP/internal/logging"
	"github.com/JustHereToHelp/HydraMCP/orchestrator"
	"github.com/JustHereToHelp/HydraMCP/orchestrator/circuitbreaker"
	"github.com/JustHereToHelp/HydraMCP/rpc"
	"github.com/JustHereToHelp/HydraMCP/tools"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	sessionsRoot := fs.String("sessions-root", "", "Base directory of per-project session transcripts")
	fs.Parse(args)

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve home directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting HydraMCP",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	smart := buildSmartBackend(cfg, logger)

	root := *sessionsRoot
	if root == "" {
		root = home
	}
	deps := &tools.Deps{Backend: smart, Logger: logger, SessionsRoot: root}
	server := rpc.NewServer(deps, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("stdio server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("HydraMCP stopped")
}

// buildSmartBackend wires one MultiBackend from the configured
// connectors in deterministic registration order — native API
// backends first, then OAuth subscription backends, then the local
// model server — and wraps it in a SmartBackend, giving routing a
// stable, reproducible precedence per invariant 5.
func buildSmartBackend(cfg *config.Config, logger *zap.Logger) *orchestrator.SmartBackend {
	mb := multi.New(logger)
	timeout := cfg.RequestTimeout()
	client := backend.NewRateLimitedClient(timeout, 0, 0)

	if cfg.OpenAI.APIKey != "" {
		mb.Register("openai", openaicompat.New(openaicompat.Config{
			BaseURL: cfg.OpenAI.BaseURL, APIKey: cfg.OpenAI.APIKey, Timeout: timeout, Dialect: openaicompat.DialectOpenAI,
		}, client, logger))
	}
	if cfg.Anthropic.APIKey != "" {
		mb.Register("anthropic", anthropic.New(anthropic.Config{
			BaseURL: cfg.Anthropic.BaseURL, APIKey: cfg.Anthropic.APIKey, Timeout: timeout,
		}, client, logger))
	}
	if cfg.Gemini.APIKey != "" {
		mb.Register("gemini", gemini.New(gemini.Config{
			BaseURL: cfg.Gemini.BaseURL, APIKey: cfg.Gemini.APIKey, Timeout: timeout,
		}, client, logger))
	}

	if cfg.AnthropicSubscription.RefreshURL != "" {
		mb.Register("anthropic-subscription", subscription.New(subscription.Config{
			Family: subscription.FamilyAnthropic, CredentialsDir: cfg.AnthropicSubscription.CredentialsDir,
			RefreshURL: cfg.AnthropicSubscription.RefreshURL, ClientID: cfg.AnthropicSubscription.ClientID,
			BaseURL: cfg.AnthropicSubscription.BaseURL, Timeout: timeout,
		}, client, logger))
	}
	if cfg.OpenAISubscription.RefreshURL != "" {
		mb.Register("openai-subscription", subscription.New(subscription.Config{
			Family: subscription.FamilyOpenAI, CredentialsDir: cfg.OpenAISubscription.CredentialsDir,
			RefreshURL: cfg.OpenAISubscription.RefreshURL, ClientID: cfg.OpenAISubscription.ClientID,
			BaseURL: cfg.OpenAISubscription.BaseURL, Timeout: timeout,
		}, client, logger))
	}
	if cfg.GeminiSubscription.RefreshURL != "" {
		mb.Register("gemini-subscription", subscription.New(subscription.Config{
			Family: subscription.FamilyGemini, CredentialsDir: cfg.GeminiSubscription.CredentialsDir,
			RefreshURL: cfg.GeminiSubscription.RefreshURL, ClientID: cfg.GeminiSubscription.ClientID,
			BaseURL: cfg.GeminiSubscription.BaseURL, Timeout: timeout,
		}, client, logger))
	}

	if cfg.LocalModel.BaseURL != "" {
		mb.Register("local", openaicompat.New(openaicompat.Config{
			BaseURL: cfg.LocalModel.BaseURL, APIKey: cfg.LocalModel.APIKey, Timeout: timeout, Dialect: openaicompat.DialectLocalModelServer,
		}, client, logger))
	}

	return orchestrator.New(orchestrator.Options{
		Inner:           mb,
		Logger:          logger,
		CacheMaxEntries: cfg.CacheMaxEntries,
		CacheTTL:        time.Duration(cfg.CacheTTLMS) * time.Millisecond,
		ModelListTTL:    time.Duration(cfg.ModelListTTLMS) * time.Millisecond,
		BreakerConfig:   circuitbreaker.Config{MaxFailures: cfg.MaxFailures, Cooldown: time.Duration(cfg.CooldownMS) * time.Millisecond},
		Fallbacks:       cfg.Fallbacks,
		MetricsNS:       "hydramcp",
	})
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fs.Parse(args)

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve home directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := logging.New(cfg.Log)
	smart := buildSmartBackend(cfg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !smart.HealthCheck(ctx) {
		fmt.Fprintln(os.Stderr, "Health check failed: no backend reachable")
		os.Exit(1)
	}
	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("HydraMCP %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`HydraMCP - multi-model orchestration MCP server

Usage:
  hydramcp <command> [options]

Commands:
  serve     Run the JSON-RPC server on stdio
  version   Show version information
  health    Check backend connectivity
  help      Show this help message

Options for 'serve':
  --sessions-root <path>   Base directory of per-project session transcripts

Examples:
  hydramcp serve
  hydramcp serve --sessions-root ~/.claude/projects
  hydramcp health
  hydramcp version`)
}
