package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zjrosen/nodegraph/internal/blueprints"
	"github.com/zjrosen/nodegraph/internal/execution"
	"github.com/zjrosen/nodegraph/internal/flags"
	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/infrastructure/sqlite"
	"github.com/zjrosen/nodegraph/internal/log"
)

// readWorkflow parses a workflow document from disk.
func readWorkflow(path string) (*graph.Workflow, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}
	return graph.ParseWorkflow(data)
}

// openLibrary opens the blueprint database named by the config. The
// returned function closes it.
func openLibrary() (*blueprints.Library, func(), error) {
	db, err := sqlite.NewDB(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening blueprint store: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.ErrorErr(log.CatStore, "closing blueprint store", err)
		}
	}
	return blueprints.NewLibrary(db.BlueprintRepository()), closeDB, nil
}

// hydrate fills in definitions the workflow references but does not carry.
// Nothing happens when the flag is off or no blueprint store exists yet.
func hydrate(ctx context.Context, wf *graph.Workflow) error {
	if !featureFlags.Enabled(flags.FlagHydrateBlueprints) {
		return nil
	}
	if _, err := os.Stat(cfg.Store.Path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	lib, closeDB, err := openLibrary()
	if err != nil {
		return err
	}
	defer closeDB()

	added, err := lib.Hydrate(ctx, wf)
	if err != nil {
		return fmt.Errorf("hydrating workflow: %w", err)
	}
	if len(added) > 0 {
		log.Info(log.CatCLI, "added definitions from blueprint library", "ids", added)
	}
	return nil
}

func newCompiler() *execution.Compiler {
	opts := []execution.Option{execution.WithMaxDepth(cfg.Flatten.MaxDepth)}
	if tracer != nil {
		opts = append(opts, execution.WithTracer(tracer.Tracer()))
	}
	return execution.NewCompiler(opts...)
}

// compile reads, hydrates, loads and flattens the workflow at path.
func compile(ctx context.Context, path string) (*execution.Program, error) {
	wf, err := readWorkflow(path)
	if err != nil {
		return nil, err
	}
	if err := hydrate(ctx, wf); err != nil {
		return nil, err
	}

	g, err := graph.Load(wf, graph.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("loading workflow %s: %w", path, err)
	}

	program, err := newCompiler().Flatten(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("flattening %s: %w", path, err)
	}
	return program, nil
}

func outputFormat(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Flatten.Format
}
