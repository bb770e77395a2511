package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/nodegraph/internal/execution"
	"github.com/zjrosen/nodegraph/internal/presentation"
)

var diffQuiet bool

var diffCmd = &cobra.Command{
	Use:   "diff <a.json> <b.json>",
	Short: "Compare the flattened prompts of two workflows",
	Long: `Flatten both workflows and print a line diff of their prompts. Two
workflows that differ only in layout or in how nodes are grouped into
subgraphs produce an empty diff when their execution ids line up.

Examples:
  nodegraph diff before.json after.json
  nodegraph diff before.json after.json --quiet && echo same`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts := make([]string, 2)
		for i, path := range args {
			program, err := compile(cmd.Context(), path)
			if err != nil {
				return err
			}
			prompt, err := execution.BuildPrompt(program)
			if err != nil {
				return err
			}
			data, err := presentation.Marshal(prompt, presentation.FormatJSON)
			if err != nil {
				return err
			}
			texts[i] = string(data)
		}

		if diffQuiet {
			if texts[0] != texts[1] {
				return fmt.Errorf("prompts differ")
			}
			return nil
		}

		changed, err := presentation.Diff(cmd.OutOrStdout(), texts[0], texts[1])
		if err != nil {
			return err
		}
		if changed {
			return fmt.Errorf("prompts differ")
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVarP(&diffQuiet, "quiet", "q", false, "print nothing; only report through the exit status")
	rootCmd.AddCommand(diffCmd)
}
