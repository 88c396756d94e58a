package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/groblegark/krecipes/internal/model"
	"github.com/groblegark/krecipes/internal/stepgraph"
	"github.com/groblegark/krecipes/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printRecipe(w io.Writer, r *model.Recipe) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(r.ID))
	fmt.Fprintf(w, "Title:       %s\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", r.Description)
	}
	if r.CreatedBy != "" {
		fmt.Fprintf(w, "Created By:  %s\n", r.CreatedBy)
	}
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(w, "Created At:  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(r.Steps) > 0 {
		fmt.Fprintln(w)
		printSteps(w, r.Steps)
	}
}

func printRecipeList(w io.Writer, recipes []*model.Recipe, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCREATED BY\tCREATED")
	for _, r := range recipes {
		title := r.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, title, r.CreatedBy, r.CreatedAt.Format("2006-01-02"))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d recipes (%d total)\n", len(recipes), total)
}

// usesSuffix describes what a step consumes, e.g. "uses output of Steps 1 and 2".
func usesSuffix(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := slices.Compact(slices.Sorted(slices.Values(nums)))
	return stepgraph.FormatStepList("uses output of", sorted, "")
}

// printSteps prints one line per step with its number right-aligned.
func printSteps(w io.Writer, steps []*model.RecipeStep) {
	if len(steps) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no steps"))
		return
	}
	width := len(strconv.Itoa(len(steps)))
	for _, s := range steps {
		line := ui.RenderStepNum(s.StepNum, width) + " " + s.Title
		if uses := usesSuffix(s.UsesOutputOf); uses != "" {
			line += "  " + ui.RenderEdge("← "+uses)
		}
		fmt.Fprintln(w, line)
	}
}

func printStep(w io.Writer, s *model.RecipeStep) {
	fmt.Fprintf(w, "Step:        %d\n", s.StepNum)
	fmt.Fprintf(w, "Recipe:      %s\n", s.RecipeID)
	fmt.Fprintf(w, "Title:       %s\n", s.Title)
	if s.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", s.Description)
	}
	if uses := usesSuffix(s.UsesOutputOf); uses != "" {
		fmt.Fprintf(w, "Uses:        %s\n", uses)
	}
}

// printGraph prints the steps followed by every edge as "output → input".
func printGraph(w io.Writer, g *model.RecipeGraph) {
	printSteps(w, g.Nodes)
	if len(g.Edges) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.RenderAccent("Edges:"))
	for _, e := range g.Edges {
		fmt.Fprintf(w, "  %d %s %d\n", e.OutputStepNum, ui.RenderEdge("→"), e.InputStepNum)
	}
}

// printEdgeEnds prints one side of each edge: the producers when producers is
// true, otherwise the consumers.
func printEdgeEnds(w io.Writer, uses []model.StepOutputUse, producers bool, empty string) {
	if len(uses) == 0 {
		fmt.Fprintln(w, ui.RenderMuted(empty))
		return
	}
	for _, u := range uses {
		n := u.InputStepNum
		if producers {
			n = u.OutputStepNum
		}
		fmt.Fprintf(w, "Step %d\n", n)
	}
}

func printValidation(w io.Writer, res *model.ValidationResult) {
	if res.Valid {
		fmt.Fprintln(w, ui.RenderOK("ok"))
		return
	}
	fmt.Fprintln(w, ui.RenderError(res.Error))
}

func printEvents(w io.Writer, evts []*model.Event) {
	if len(evts) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("no events"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tTOPIC\tACTOR")
	for _, e := range evts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Topic, e.Actor)
	}
	tw.Flush()
}
