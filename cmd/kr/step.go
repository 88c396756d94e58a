package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/groblegark/krecipes/internal/client"
	"github.com/groblegark/krecipes/internal/idgen"
	"github.com/spf13/cobra"
)

// parseStepNum parses a 1-based step number argument.
func parseStepNum(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step number %q", s)
	}
	return n, nil
}

// parseStepNums parses step number arguments. Unlike parseStepNum it keeps
// values below 1 so the server can reject them with its own message.
func parseStepNums(args []string) ([]int, error) {
	nums := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid step number %q", a)
		}
		nums = append(nums, n)
	}
	return nums, nil
}

var stepCmd = &cobra.Command{
	Use:     "step",
	Short:   "Add, edit, reorder and remove recipe steps",
	GroupID: "recipes",
}

var stepAddCmd = &cobra.Command{
	Use:   "add <recipe-id> <title>",
	Short: "Append a step to a recipe",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		uses, _ := cmd.Flags().GetIntSlice("uses")

		step, err := recipesClient.AddStep(cmd.Context(), idgen.Normalize(args[0]), &client.AddStepRequest{
			Title:        args[1],
			Description:  desc,
			UsesOutputOf: uses,
			Actor:        actor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), step)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added step %d\n", step.StepNum)
		return nil
	},
}

var stepEditCmd = &cobra.Command{
	Use:   "edit <recipe-id> <step>",
	Short: "Edit a step's text or the outputs it uses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}

		req := &client.UpdateStepRequest{Actor: actor}
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			req.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			req.Description = &v
		}
		clearUses, _ := cmd.Flags().GetBool("clear-uses")
		switch {
		case clearUses && cmd.Flags().Changed("uses"):
			return fmt.Errorf("--uses and --clear-uses are mutually exclusive")
		case clearUses:
			empty := []int{}
			req.UsesOutputOf = &empty
		case cmd.Flags().Changed("uses"):
			v, _ := cmd.Flags().GetIntSlice("uses")
			req.UsesOutputOf = &v
		}
		if req.Title == nil && req.Description == nil && req.UsesOutputOf == nil {
			return fmt.Errorf("nothing to change; pass --title, --description, --uses or --clear-uses")
		}

		step, err := recipesClient.UpdateStep(cmd.Context(), idgen.Normalize(args[0]), num, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), step)
		}
		printStep(cmd.OutOrStdout(), step)
		return nil
	},
}

var stepMoveCmd = &cobra.Command{
	Use:   "move <recipe-id> <step> <position>",
	Short: "Move a step to a new position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		pos, err := parseStepNum(args[2])
		if err != nil {
			return err
		}

		steps, err := recipesClient.MoveStep(cmd.Context(), idgen.Normalize(args[0]), num, pos, actor)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), steps)
		}
		printSteps(cmd.OutOrStdout(), steps)
		return nil
	},
}

var stepCheckMoveCmd = &cobra.Command{
	Use:   "check-move <recipe-id> <step> <position>",
	Short: "Report whether a move would be allowed without moving anything",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		pos, err := parseStepNum(args[2])
		if err != nil {
			return err
		}

		res, err := recipesClient.CheckMove(cmd.Context(), idgen.Normalize(args[0]), num, pos)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printValidation(cmd.OutOrStdout(), res)
		if !res.Valid {
			return errMoveRejected
		}
		return nil
	},
}

// errMoveRejected makes check-move exit non-zero after the reason was printed.
var errMoveRejected = errors.New("move rejected")

var stepRemoveCmd = &cobra.Command{
	Use:     "rm <recipe-id> <step>",
	Aliases: []string{"delete"},
	Short:   "Delete a step that no other step uses",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		if err := recipesClient.DeleteStep(cmd.Context(), idgen.Normalize(args[0]), num, actor); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted step %d\n", num)
		return nil
	},
}

var stepListCmd = &cobra.Command{
	Use:   "list <recipe-id>",
	Short: "List the steps of a recipe in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := recipesClient.ListSteps(cmd.Context(), idgen.Normalize(args[0]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), steps)
		}
		printSteps(cmd.OutOrStdout(), steps)
		return nil
	},
}

var stepShowCmd = &cobra.Command{
	Use:   "show <recipe-id> <step>",
	Short: "Show one step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		num, err := parseStepNum(args[1])
		if err != nil {
			return err
		}
		step, err := recipesClient.GetStep(cmd.Context(), idgen.Normalize(args[0]), num)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), step)
		}
		printStep(cmd.OutOrStdout(), step)
		return nil
	},
}

func init() {
	stepAddCmd.Flags().StringP("description", "d", "", "step description")
	stepAddCmd.Flags().IntSlice("uses", nil, "earlier steps whose output this step uses (e.g. 1,3)")

	stepEditCmd.Flags().String("title", "", "new title")
	stepEditCmd.Flags().StringP("description", "d", "", "new description")
	stepEditCmd.Flags().IntSlice("uses", nil, "replace the steps whose output this step uses")
	stepEditCmd.Flags().Bool("clear-uses", false, "stop using the output of any step")

	stepCmd.AddCommand(stepAddCmd)
	stepCmd.AddCommand(stepEditCmd)
	stepCmd.AddCommand(stepMoveCmd)
	stepCmd.AddCommand(stepCheckMoveCmd)
	stepCmd.AddCommand(stepRemoveCmd)
	stepCmd.AddCommand(stepListCmd)
	stepCmd.AddCommand(stepShowCmd)
}
