package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/ops"
	"github.com/hpungsan/legible/internal/report"
)

// checkResult is one line item of `check --json`.
type checkResult struct {
	*ops.CheckOutput
	Error *checkError `json:"error,omitempty"`
	Path  string      `json:"path,omitempty"`
}

type checkError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// checkCmd creates the check command.
func checkCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check the readability of Markdown files",
		ArgsUsage: "<file.md>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stdin", Usage: "Read the document from stdin"},
			&cli.StringFlag{Name: "label", Value: "stdin", Usage: "Source label for --stdin"},
			&cli.Float64Flag{Name: "min", Usage: "Minimum Flesch Reading Ease (default 45)"},
			&cli.Float64Flag{Name: "max", Usage: "Maximum Flesch Reading Ease (default 70)"},
			&cli.BoolFlag{Name: "no-min", Usage: "No lower bound"},
			&cli.BoolFlag{Name: "no-max", Usage: "No upper bound"},
			&cli.BoolFlag{Name: "no-range", Usage: "Report metrics only; any readable text passes"},
			&cli.BoolFlag{Name: "record", Usage: "Store the result in history (default: config record_history)"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Workspace for recorded reports"},
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"j"}, Usage: "Files checked in parallel (default: config check_concurrency)"},
			&cli.BoolFlag{Name: "watch", Usage: "Re-check files whenever they change"},
			&cli.DurationFlag{Name: "debounce", Value: ops.DefaultWatchDebounce, Usage: "Quiet period before a changed file is re-checked"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
			&cli.BoolFlag{Name: "plain", Usage: "Disable colors"},
		},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			useStdin := c.Bool("stdin")

			switch {
			case useStdin && len(paths) > 0:
				return outputError(errors.NewInvalidRequest("--stdin cannot be combined with file arguments"))
			case !useStdin && len(paths) == 0:
				return outputError(errors.NewInvalidRequest("at least one file is required (or --stdin)"))
			case useStdin && c.Bool("watch"):
				return outputError(errors.NewInvalidRequest("--watch requires file arguments"))
			}

			base := ops.CheckInput{
				NoMin:     c.Bool("no-min"),
				NoMax:     c.Bool("no-max"),
				Workspace: c.String("workspace"),
			}
			if c.IsSet("min") {
				v := c.Float64("min")
				base.MinScore = &v
			}
			if c.IsSet("max") {
				v := c.Float64("max")
				base.MaxScore = &v
			}
			if c.Bool("no-range") {
				skip := true
				base.SkipRange = &skip
			}
			rng := ops.ResolveRange(e.cfg, base.MinScore, base.MaxScore, base.NoMin, base.NoMax)
			if err := ops.ValidateRange(rng); err != nil {
				return outputError(err)
			}

			record := e.cfg.RecordHistory
			if c.IsSet("record") {
				record = c.Bool("record")
			}
			base.Record = &record

			var database *sql.DB
			if record {
				d, err := e.database()
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				database = d
			}

			var inputs []ops.CheckInput
			if useStdin {
				text, err := readStdin(e.stdin, e.cfg.MaxFileBytes)
				if err != nil {
					return outputError(err)
				}
				in := base
				in.Text = &text
				in.Source = c.String("label")
				inputs = append(inputs, in)
			} else {
				for _, p := range paths {
					in := base
					in.Path = p
					inputs = append(inputs, in)
				}
			}

			p := &checkPrinter{
				w:     e.stdout,
				json:  c.Bool("json"),
				multi: len(inputs) > 1,
				opts:  report.RenderOptions{Plain: c.Bool("plain")},
			}

			items, err := ops.CheckMany(c.Context, database, e.cfg, inputs, c.Int("concurrency"))
			if err != nil {
				return outputError(err)
			}
			allPassed, err := p.print(items)
			if err != nil {
				return err
			}

			if c.Bool("watch") {
				return watchChecks(c.Context, e, database, p, inputs, c.Duration("debounce"))
			}
			if !allPassed {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

// watchChecks re-checks each input whenever its file changes, until ctx is done.
func watchChecks(ctx context.Context, e *env, database *sql.DB, p *checkPrinter, inputs []ops.CheckInput, debounce time.Duration) error {
	byPath := make(map[string]ops.CheckInput, len(inputs))
	paths := make([]string, 0, len(inputs))
	for _, in := range inputs {
		byPath[in.Path] = in
		paths = append(paths, in.Path)
	}

	fmt.Fprintf(e.stderr, "Watching %d file(s). Press Ctrl+C to stop.\n", len(paths))

	err := ops.Watch(ctx, paths, debounce, func(path string) {
		in, ok := byPath[path]
		if !ok {
			return
		}
		items, err := ops.CheckMany(ctx, database, e.cfg, []ops.CheckInput{in}, 1)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("re-check failed")
			return
		}
		if _, err := p.print(items); err != nil {
			log.Warn().Err(err).Msg("write failed")
		}
	})
	if err != nil && ctx.Err() == nil {
		return outputError(err)
	}
	return nil
}

// checkPrinter writes check results. It is shared by the watch callback,
// which can fire while an earlier print is still in progress.
type checkPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	json    bool
	multi   bool
	opts    report.RenderOptions
	printed int
}

// print writes items and reports whether every one of them passed.
func (p *checkPrinter) print(items []ops.CheckManyItem) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allPassed := true
	results := make([]checkResult, 0, len(items))
	for _, item := range items {
		if item.Err != nil || !item.Output.Passed {
			allPassed = false
		}
		results = append(results, toCheckResult(item))
	}

	if p.json {
		if !p.multi && len(results) == 1 {
			return allPassed, outputJSON(p.w, results[0])
		}
		return allPassed, outputJSON(p.w, results)
	}

	for _, r := range results {
		if p.printed > 0 {
			fmt.Fprintln(p.w)
		}
		p.printed++

		if r.Error != nil {
			if _, err := fmt.Fprintf(p.w, "ERROR: %s\n", r.Error.Message); err != nil {
				return allPassed, err
			}
			continue
		}
		if err := report.Render(p.w, r.Result, p.opts); err != nil {
			return allPassed, err
		}
		if r.ReportID != "" {
			fmt.Fprintf(p.w, "- Report: %s\n", r.ReportID)
		}
	}
	return allPassed, nil
}

func toCheckResult(item ops.CheckManyItem) checkResult {
	if item.Err == nil {
		return checkResult{CheckOutput: item.Output}
	}
	res := checkResult{Path: item.Input.Path}
	var lErr *errors.LegibleError
	if stderrors.As(item.Err, &lErr) {
		res.Error = &checkError{Code: string(lErr.Code), Message: lErr.Message}
	} else {
		res.Error = &checkError{Code: string(errors.ErrInternal), Message: item.Err.Error()}
	}
	return res
}

// readStdin reads a whole document from r, refusing more than maxBytes.
func readStdin(r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("read stdin: %w", err))
	}
	if int64(len(data)) > maxBytes {
		return "", errors.NewFileTooLarge("stdin", maxBytes, int64(len(data)))
	}
	return string(data), nil
}
