package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/zjrosen/nodegraph/internal/execution"
	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/presentation"
	"github.com/zjrosen/nodegraph/internal/watcher"
)

var (
	flattenFormat string
	flattenIDs    bool
	flattenNodes  bool
	flattenWatch  bool
)

var flattenCmd = &cobra.Command{
	Use:   "flatten <workflow.json>",
	Short: "Flatten a workflow into the engine prompt",
	Long: `Flatten a workflow document, resolving every input across subgraph
boundaries, and print the prompt an execution engine consumes.

Subgraph definitions the workflow references but does not carry are taken
from the blueprint library when the hydrate-blueprints flag is on.

Examples:
  # Print the prompt as JSON
  nodegraph flatten workflow.json

  # Print it as YAML
  nodegraph flatten workflow.json --format yaml

  # List execution ids only, one per line
  nodegraph flatten workflow.json --ids

  # Describe every flattened node (id, type, path, mode)
  nodegraph flatten workflow.json --nodes

  # Re-run whenever the file is saved
  nodegraph flatten workflow.json --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runFlatten,
}

func init() {
	flattenCmd.Flags().StringVarP(&flattenFormat, "format", "f", "", "output format: json or yaml (default from config)")
	flattenCmd.Flags().BoolVar(&flattenIDs, "ids", false, "print execution ids only")
	flattenCmd.Flags().BoolVar(&flattenNodes, "nodes", false, "print the flattened node list instead of the prompt")
	flattenCmd.Flags().BoolVarP(&flattenWatch, "watch", "w", false, "re-run when the workflow file changes")
	flattenCmd.MarkFlagsMutuallyExclusive("ids", "nodes")
	rootCmd.AddCommand(flattenCmd)
}

func runFlatten(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	if !flattenWatch {
		return flattenOnce(cmd.Context(), out, path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := watcher.New(watcher.Config{
		Paths:       []string{path},
		DebounceDur: cfg.Watch.Debounce,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}

	report := func() {
		if err := flattenOnce(ctx, out, path); err != nil {
			log.ErrorErr(log.CatCLI, "flatten failed", err, "path", path)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
	}
	report()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			log.Debug(log.CatWatcher, "workflow changed", "path", path)
			report()
		}
	}
}

func flattenOnce(ctx context.Context, out io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	program, err := compile(ctx, path)
	if err != nil {
		return err
	}

	formatter := presentation.NewFormatter(out, outputFormat(flattenFormat))
	switch {
	case flattenIDs:
		return formatter.FormatIDs(presentation.FromProgram(program))
	case flattenNodes:
		return formatter.FormatProgram(presentation.FromProgram(program))
	}

	prompt, err := execution.BuildPrompt(program)
	if err != nil {
		return err
	}
	return formatter.Encode(prompt)
}
