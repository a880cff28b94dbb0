// Package cmd contains the CLI entry points: serve (default), ask,
// migrate, and version.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/camilo-ai/camilo/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the CLI. It routes the first
// argument to a subcommand; with no argument the HTTP server runs.
func Execute() error {
	logger := initLogger()
	slog.SetDefault(logger)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		return runServe(logger)
	case "ask":
		return runAsk(logger, args)
	case "migrate":
		return runMigrate(logger)
	case "version", "--version", "-v":
		return printVersionInfo()
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command %q", command)
	}
}

// initLogger builds the structured logger. The DEBUG environment
// variable (any value) enables debug level.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}

func printVersionInfo() error {
	fmt.Printf("camilo v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

func printHelp() {
	fmt.Println(`camilo - retrieval-grounded persona chat assistant

Usage:
  camilo [command]

Commands:
  serve      Start the HTTP API server (default)
  ask        Ask a single question from the command line
  migrate    Run pending database migrations
  version    Print version information
  help       Show this help

Environment:
  GEMINI_API_KEY   API key for the generation backend (required)
  CAMILO_*         Configuration overrides (see ~/.camilo/config.yaml)
  DEBUG            Enable debug logging`)
}
