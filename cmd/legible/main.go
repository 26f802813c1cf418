package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"check": true, "history": true, "show": true, "latest": true,
	"delete": true, "purge": true, "export": true, "import": true,
	"serve": true, "mcp": true, "help": true,
}

// isCLIMode reports whether args select the CLI rather than the MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	// Any flag (--help, --version, --verbose, --home ...) means CLI.
	return len(arg) > 1 && arg[0] == '-'
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner displays a short usage note when run interactively without args.
func printBanner() {
	fmt.Println(`
  legible: Markdown readability checker

  Usage: legible check <file.md>...
         legible --help

  MCP server mode requires piped input.`)
}

func main() {
	args := os.Args

	if len(args) < 2 && isTerminal() {
		printBanner()
		return
	}

	if !isCLIMode(args) {
		if len(args) >= 2 && isTerminal() {
			fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[1])
			fmt.Fprintf(os.Stderr, "Run 'legible --help' for usage.\n")
			os.Exit(1)
		}
		// Piped stdin with no subcommand: serve MCP.
		args = []string{args[0], "mcp"}
	}

	os.Exit(run(args))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := newEnv(os.Stdin, os.Stdout, os.Stderr)
	defer env.close()

	return exitCode(newCLIApp(env).RunContext(ctx, args))
}

// exitCode prints err (if it has a message) and maps it to a process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr cli.ExitCoder
	if stderrors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		return exitErr.ExitCode()
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
