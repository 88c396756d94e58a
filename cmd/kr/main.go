package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/groblegark/krecipes/internal/client"
	"github.com/groblegark/krecipes/internal/ui"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	jsonOutput bool
	actor      string

	recipesClient client.RecipesClient
)

func defaultActor() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("RECIPES_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func authToken() string {
	if s := os.Getenv("RECIPES_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// skipClient is used as PersistentPreRunE by commands that never talk to
// the HTTP API.
func skipClient(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "kr <command>",
	Short:         "CLI client for the Recipes service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		recipesClient = client.NewHTTPClient(httpURL, authToken())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if recipesClient != nil {
			recipesClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "actor name recorded on events")

	rootCmd.AddGroup(
		&cobra.Group{ID: "recipes", Title: "Recipes:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Recipes
	rootCmd.AddCommand(recipeCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(usesCmd)

	// Views
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(eventsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// check-move already printed its reason.
		if !errors.Is(err, errMoveRejected) {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		os.Exit(1)
	}
}

// formatError renders err for the terminal. Server-side validation messages
// are shown verbatim without the HTTP status prefix.
func formatError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return ui.RenderError("Error: ") + apiErr.Message
	}
	return ui.RenderError("Error: ") + err.Error()
}
