package main

import (
	"fmt"

	"github.com/groblegark/krecipes/internal/idgen"
	"github.com/spf13/cobra"
)

var usesCmd = &cobra.Command{
	Use:     "uses",
	Short:   "Manage which step outputs a step uses",
	GroupID: "recipes",
}

var usesSetCmd = &cobra.Command{
	Use:   "set <recipe-id> <step> [output-step...]",
	Short: "Replace the outputs a step uses (no output steps clears them)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		outputs, err := parseStepNums(args[2:])
		if err != nil {
			return err
		}

		n, err := recipesClient.SetUses(cmd.Context(), idgen.Normalize(args[0]), num, outputs, actor)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int{"count": n})
		}
		if n == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Step %d uses no other step's output\n", num)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Step %d %s\n", num, usesSuffix(outputs))
		return nil
	},
}

var usesListCmd = &cobra.Command{
	Use:   "list <recipe-id> <step>",
	Short: "List the steps whose output a step uses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		uses, err := recipesClient.GetUses(cmd.Context(), idgen.Normalize(args[0]), num)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), uses)
		}
		printEdgeEnds(cmd.OutOrStdout(), uses, true, "uses no other step's output")
		return nil
	},
}

var usesUsersCmd = &cobra.Command{
	Use:   "users <recipe-id> <step>",
	Short: "List the steps that use a step's output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		uses, err := recipesClient.GetUsedBy(cmd.Context(), idgen.Normalize(args[0]), num)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), uses)
		}
		printEdgeEnds(cmd.OutOrStdout(), uses, false, "no step uses its output")
		return nil
	},
}

func init() {
	usesCmd.AddCommand(usesSetCmd)
	usesCmd.AddCommand(usesListCmd)
	usesCmd.AddCommand(usesUsersCmd)
}
