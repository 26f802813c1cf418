package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/logger"
	"github.com/hpungsan/legible/internal/mcp"
	"github.com/hpungsan/legible/internal/ops"
	"github.com/hpungsan/legible/internal/report"
	"github.com/hpungsan/legible/internal/web"
)

// env carries what commands share: streams, config and a lazily opened database.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	baseDir string
	cfg     *config.Config
	db      *sql.DB
}

func newEnv(stdin io.Reader, stdout, stderr io.Writer) *env {
	return &env{stdin: stdin, stdout: stdout, stderr: stderr}
}

// setup resolves the base directory, loads config and configures logging.
func (e *env) setup(c *cli.Context) error {
	e.baseDir = c.String("home")
	if e.baseDir == "" {
		dir, err := ops.DefaultBaseDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory: %w", err)
		}
		e.baseDir = dir
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(e.baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	e.cfg = cfg

	level := cfg.LogLevel
	if c.Bool("verbose") {
		level = "debug"
	}
	logger.Init(level, e.stderr)
	log.Debug().Str("base_dir", e.baseDir).Msg("config loaded")
	return nil
}

// database opens the report store on first use. Plain checks never touch it.
func (e *env) database() (*sql.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	d, err := db.Init(e.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(d, e.cfg)
	e.db = d
	return d, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
		e.db = nil
	}
}

// withDB wraps an action that needs the database.
func (e *env) withDB(action func(c *cli.Context, database *sql.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		database, err := e.database()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return action(c, database)
	}
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:      "legible",
		Usage:     "Markdown readability checker",
		Version:   Version,
		Reader:    e.stdin,
		Writer:    e.stdout,
		ErrWriter: e.stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging on stderr"},
			&cli.StringFlag{Name: "home", EnvVars: []string{"LEGIBLE_HOME"}, Usage: "Data directory (default: ~/.legible)"},
		},
		Before: e.setup,
		Commands: []*cli.Command{
			checkCmd(e),
			historyCmd(e),
			showCmd(e),
			latestCmd(e),
			deleteCmd(e),
			purgeCmd(e),
			exportCmd(e),
			importCmd(e),
			serveCmd(e),
			mcpCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// historyCmd creates the history command.
func historyCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded reports, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace (default: all)"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Filter by file path or label"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status: pass|fail"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted reports"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			input := ops.ListInput{
				Source:         c.String("source"),
				Status:         c.String("status"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			}
			if c.IsSet("workspace") {
				ws := c.String("workspace")
				input.Workspace = &ws
			}

			output, err := ops.List(c.Context, database, input)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(e.stdout, output)
			}
			if err := report.RenderHistory(e.stdout, output.Items, time.Now()); err != nil {
				return err
			}
			if output.Pagination.HasMore {
				fmt.Fprintf(e.stdout, "(%d of %d; use --offset %d for more)\n",
					len(output.Items), output.Pagination.Total, output.Pagination.Offset+len(output.Items))
			}
			return nil
		}),
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a recorded report",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Allow soft-deleted reports"},
			&cli.BoolFlag{Name: "text", Usage: "Also print the checked document"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
			&cli.BoolFlag{Name: "plain", Usage: "Disable colors"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			output, err := ops.Fetch(c.Context, database, ops.FetchInput{
				ID:             c.Args().First(),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				if !c.Bool("text") {
					output.SourceText = ""
				}
				return outputJSON(e.stdout, output)
			}
			return printStored(e.stdout, output, c.Bool("text"), report.RenderOptions{Plain: c.Bool("plain")})
		}),
	}
}

// latestCmd creates the latest command.
func latestCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recent report in a workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace (default: config workspace)"},
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Usage: "Only reports for this file path or label"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted reports"},
			&cli.BoolFlag{Name: "text", Usage: "Also print the checked document"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
			&cli.BoolFlag{Name: "plain", Usage: "Disable colors"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			includeText := c.Bool("text")
			output, err := ops.Latest(c.Context, database, e.cfg, ops.LatestInput{
				Workspace:      c.String("workspace"),
				Source:         c.String("source"),
				IncludeText:    &includeText,
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(e.stdout, output)
			}
			if output.Item == nil {
				_, err := fmt.Fprintln(e.stdout, "No reports.")
				return err
			}
			return printStored(e.stdout, output.Item, includeText, report.RenderOptions{Plain: c.Bool("plain")})
		}),
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a report",
		ArgsUsage: "<id>",
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			output, err := ops.Delete(c.Context, database, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		}),
	}
}

// purgeCmd creates the purge command.
func purgeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted reports",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			input := ops.PurgeInput{}

			if workspace := c.String("workspace"); workspace != "" {
				input.Workspace = &workspace
			}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, database, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		}),
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export reports to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.legible/exports/<workspace>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted reports"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			input := ops.ExportInput{
				Path:           c.String("path"),
				IncludeDeleted: c.Bool("include-deleted"),
			}
			if workspace := c.String("workspace"); workspace != "" {
				input.Workspace = &workspace
			}

			output, err := ops.Export(c.Context, database, e.cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		}),
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import reports from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace|skip"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			output, err := ops.Import(c.Context, database, e.cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(e.stdout, output)
		}),
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Browse reports in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8484, Usage: "Port to listen on"},
		},
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			srv, err := web.NewServer(database, e.cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stderr, "legible UI running at http://%s\n", srv.Addr)
			return web.Run(c.Context, srv)
		}),
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve readability tools over MCP on stdio",
		Action: e.withDB(func(c *cli.Context, database *sql.DB) error {
			if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
				log.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
			}
			if unknown := mcp.ValidateDisabledTypes(e.cfg.DisabledTypes); len(unknown) > 0 {
				log.Warn().Strs("types", unknown).Msg("unknown types in disabled_types")
			}
			return mcp.Run(database, e.cfg, Version)
		}),
	}
}

// Helper functions

// printStored renders a recorded report in the check layout plus its identity.
func printStored(w io.Writer, out *ops.FetchOutput, withText bool, opts report.RenderOptions) error {
	if err := report.Render(w, out.Summary.Result(), opts); err != nil {
		return err
	}
	fmt.Fprintf(w, "- Report: %s\n", out.ID)
	fmt.Fprintf(w, "- Workspace: %s\n", out.Workspace)
	fmt.Fprintf(w, "- Checked: %s\n", time.Unix(out.CreatedAt, 0).UTC().Format(time.RFC3339))
	if out.DeletedAt != nil {
		fmt.Fprintf(w, "- Deleted: %s\n", time.Unix(*out.DeletedAt, 0).UTC().Format(time.RFC3339))
	}
	if withText {
		fmt.Fprintf(w, "\n%s\n", out.SourceText)
	}
	return nil
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LegibleError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
