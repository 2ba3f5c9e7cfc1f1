package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/PlayerYK/TweetSift/internal/config"
	"github.com/PlayerYK/TweetSift/internal/db"
	"github.com/PlayerYK/TweetSift/internal/logging"
	"github.com/PlayerYK/TweetSift/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"serve": true, "mcp": true,
	"stats": true, "enabled": true, "recent": true,
	"operations": true, "observe": true,
	"check": true, "archive": true, "undo": true, "classify": true,
	"folders": true, "export": true, "message": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  _____                     _   ____  _  __ _
 |_   _|_      _____  ___| |_/ ___|(_)/ _| |_
   | | \ \ /\ / / _ \/ _ \ __\___ \| | |_| __|
   | |  \ V  V /  __/  __/ |_ ___) | |  _| |_
   |_|   \_/\_/ \___|\___|\__|____/|_|_|  \__|

  Bookmark archiving and folder export for X

  Usage: tweetsift <command> [options]
         tweetsift --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".tweetsift")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	// Logs go to stderr: stdout carries CLI output and the MCP stream.
	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	env := &cliEnv{db: database, cfg: cfg, logger: logger, baseDir: baseDir}

	if isCLIMode() {
		if err := newCLIApp(env).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'tweetsift --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := runMCP(ctx, env); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runMCP serves the MCP tools over stdio.
func runMCP(ctx context.Context, env *cliEnv) error {
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		env.logger.Warn("unknown disabled tools", "tools", unknown)
	}
	if unknown := mcp.ValidateDisabledTypes(env.cfg.DisabledTypes); len(unknown) > 0 {
		env.logger.Warn("unknown disabled types", "types", unknown)
	}

	rt, err := env.runtime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	return mcp.Run(rt, Version)
}
