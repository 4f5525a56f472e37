package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"devinflow/internal/lifecycle"
	"devinflow/internal/runner"
	"devinflow/internal/workflow"
)

func newValidateCommand(app *App) *cobra.Command {
	var (
		jsonOut bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "validate <workflow.md>",
		Short: "Check a workflow without running it",
		Long: `Parse a workflow and report errors and warnings without creating any
sessions. With --watch the file is checked again every time it is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			check := func() (*runner.ValidationReport, error) {
				markdown, err := readWorkflow(cmd.InOrStdin(), path)
				if err != nil {
					return nil, err
				}
				rep := runner.ValidateWorkflow(markdown)
				if jsonOut {
					return rep, writeJSON(cmd.OutOrStdout(), rep)
				}
				app.printValidation(rep)
				return rep, nil
			}

			if watch {
				if path == "-" {
					return fmt.Errorf("--watch needs a file path")
				}
				return watchWorkflow(cmd.Context(), app, path, func() {
					if _, err := check(); err != nil {
						app.Printer.Error("%v", err)
					}
				})
			}

			rep, err := check()
			if err != nil {
				return err
			}
			if !rep.Valid {
				return NewExitError(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the validation report as JSON")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "revalidate whenever the file changes")

	return cmd
}

func (a *App) printValidation(rep *runner.ValidationReport) {
	a.Printer.ValidationResult(rep.Valid, rep.Errors, rep.Warnings)
	if rep.Summary != nil {
		a.Printer.WorkflowSummary(*rep.Summary)
	}
}

// watchWorkflow calls onChange once, then again after every write to path,
// until ctx is done. The parent directory is watched so editors that replace
// the file on save are still seen.
func watchWorkflow(ctx context.Context, app *App, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	onChange()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				app.Logger.Debug("workflow changed", "file", event.Name, "op", event.Op.String())
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.Logger.Warn("file watcher error", "error", err)
		}
	}
}

func newParseCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <workflow.md>",
		Short: "Print the parsed steps of a workflow as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			markdown, err := readWorkflow(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			doc, err := workflow.Parse(markdown)
			if err != nil {
				return fmt.Errorf("workflow parse failed: %w", err)
			}
			return writeParsed(cmd.OutOrStdout(), doc)
		},
	}
}

func writeParsed(w io.Writer, doc *workflow.Document) error {
	return writeJSON(w, struct {
		Overview string           `json:"overview,omitempty"`
		Steps    []workflow.Step  `json:"steps"`
		Repos    []string         `json:"repos"`
		Summary  workflow.Summary `json:"summary"`
	}{doc.Overview, doc.Steps, lifecycle.ResolveRepos(doc.Steps), workflow.Summarize(doc.Steps)})
}
