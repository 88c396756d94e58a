package sync

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// readHeader decodes the header line of an export.
func readHeader(data []byte) (header, bool) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return header{}, false
	}
	return h, true
}

// exportSummary describes an export by its header, e.g.
// "3 recipes, 12 steps, 7 edges". Data without a readable header yields "".
func exportSummary(data []byte) string {
	h, ok := readHeader(data)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s, %s, %s",
		plural(h.RecipeCount, "recipe"),
		plural(h.StepCount, "step"),
		plural(h.EdgeCount, "edge"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
