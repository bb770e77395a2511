package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/nodegraph/internal/flags"
	"github.com/zjrosen/nodegraph/internal/graph"
	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/presentation"
)

var blueprintFormat string

var blueprintCmd = &cobra.Command{
	Use:   "blueprint",
	Short: "Manage the library of saved subgraph definitions",
	Long: `Blueprints are subgraph definitions saved to a local SQLite library so
other workflows can reference them without carrying their own copy.

Examples:
  # Save every definition carried by a workflow
  nodegraph blueprint save workflow.json

  # List saved blueprints
  nodegraph blueprint list

  # Print one definition
  nodegraph blueprint export 8a1c7f4e-0c3b-4d8e-9b7a-2f64e1f0d9aa`,
}

var blueprintSaveCmd = &cobra.Command{
	Use:   "save <workflow.json>",
	Short: "Save the subgraph definitions of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := readWorkflow(args[0])
		if err != nil {
			return err
		}

		if featureFlags.Enabled(flags.FlagPruneUnused) {
			g, err := graph.Load(wf, graph.NewRegistry())
			if err != nil {
				return fmt.Errorf("loading workflow %s: %w", args[0], err)
			}
			if removed := g.Registry().PruneUnused(g); len(removed) > 0 {
				log.Info(log.CatCLI, "skipping unused definitions", "ids", removed)
			}
			wf = g.Serialize()
		}

		lib, closeDB, err := openLibrary()
		if err != nil {
			return err
		}
		defer closeDB()

		saved, err := lib.SaveWorkflow(cmd.Context(), wf)
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), blueprintFormat).
			FormatBlueprints(presentation.FromBlueprints(saved))
	},
}

var blueprintListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved blueprints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeDB, err := openLibrary()
		if err != nil {
			return err
		}
		defer closeDB()

		bs, err := lib.List(cmd.Context())
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), blueprintFormat).
			FormatBlueprints(presentation.FromBlueprints(bs))
	},
}

var blueprintExportCmd = &cobra.Command{
	Use:   "export <subgraph-id>",
	Short: "Print a saved subgraph definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeDB, err := openLibrary()
		if err != nil {
			return err
		}
		defer closeDB()

		def, err := lib.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return presentation.NewFormatter(cmd.OutOrStdout(), blueprintFormat).Encode(def)
	},
}

var blueprintDeleteCmd = &cobra.Command{
	Use:   "delete <subgraph-id>",
	Short: "Remove a saved blueprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, closeDB, err := openLibrary()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := lib.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return err
	},
}

func init() {
	blueprintCmd.PersistentFlags().StringVarP(&blueprintFormat, "format", "f", presentation.FormatJSON, "output format: json or yaml")
	blueprintCmd.AddCommand(blueprintSaveCmd, blueprintListCmd, blueprintExportCmd, blueprintDeleteCmd)
	rootCmd.AddCommand(blueprintCmd)
}
