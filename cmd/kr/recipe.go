package main

import (
	"fmt"

	"github.com/groblegark/krecipes/internal/client"
	"github.com/groblegark/krecipes/internal/idgen"
	"github.com/spf13/cobra"
)

var recipeCmd = &cobra.Command{
	Use:     "recipe",
	Short:   "Create, inspect and delete recipes",
	GroupID: "recipes",
}

var recipeCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		recipe, err := recipesClient.CreateRecipe(cmd.Context(), &client.CreateRecipeRequest{
			Title:       args[0],
			Description: desc,
			CreatedBy:   actor,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recipe)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created recipe %s\n", recipe.ID)
		return nil
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recipe and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recipe, err := recipesClient.GetRecipe(cmd.Context(), idgen.Normalize(args[0]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), recipe)
		}
		printRecipe(cmd.OutOrStdout(), recipe)
		return nil
	},
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		resp, err := recipesClient.ListRecipes(cmd.Context(), &client.ListRecipesRequest{Limit: limit, Offset: offset})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printRecipeList(cmd.OutOrStdout(), resp.Recipes, resp.Total)
		return nil
	},
}

var recipeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recipe with all its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := idgen.Normalize(args[0])
		if err := recipesClient.DeleteRecipe(cmd.Context(), id, actor); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted recipe %s\n", id)
		return nil
	},
}

var recipeGraphCmd = &cobra.Command{
	Use:   "graph <id>",
	Short: "Show the steps of a recipe and which outputs each one uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := recipesClient.GetRecipeGraph(cmd.Context(), idgen.Normalize(args[0]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), g)
		}
		printGraph(cmd.OutOrStdout(), g)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events <recipe-id>",
	Short:   "Show the audit log of a recipe",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := recipesClient.GetEvents(cmd.Context(), idgen.Normalize(args[0]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evts)
		}
		printEvents(cmd.OutOrStdout(), evts)
		return nil
	},
}

func init() {
	recipeCreateCmd.Flags().StringP("description", "d", "", "recipe description")
	recipeListCmd.Flags().Int("limit", 0, "maximum number of recipes (0 = all)")
	recipeListCmd.Flags().Int("offset", 0, "number of recipes to skip")

	recipeCmd.AddCommand(recipeCreateCmd)
	recipeCmd.AddCommand(recipeShowCmd)
	recipeCmd.AddCommand(recipeListCmd)
	recipeCmd.AddCommand(recipeDeleteCmd)
	recipeCmd.AddCommand(recipeGraphCmd)
}
