package stepgraph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// FormatStepList renders nums as an English list of steps between prefix and
// suffix:
//
//	[3]       -> "{prefix} Step 3{suffix}"
//	[3 4]     -> "{prefix} Steps 3 and 4{suffix}"
//	[3 4 5]   -> "{prefix} Steps 3, 4, and 5{suffix}"
//
// nums must already be sorted. Callers return a valid result instead of
// calling this with an empty list; an empty list panics.
func FormatStepList(prefix string, nums []int, suffix string) string {
	switch len(nums) {
	case 0:
		panic("stepgraph: FormatStepList called with no step numbers")
	case 1:
		return fmt.Sprintf("%s Step %d%s", prefix, nums[0], suffix)
	case 2:
		return fmt.Sprintf("%s Steps %d and %d%s", prefix, nums[0], nums[1], suffix)
	}

	head := make([]string, len(nums)-1)
	for i, n := range nums[:len(nums)-1] {
		head[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("%s Steps %s, and %d%s", prefix, strings.Join(head, ", "), nums[len(nums)-1], suffix)
}

// sortedUnique returns a sorted copy of nums with duplicates removed.
func sortedUnique(nums []int) []int {
	out := slices.Clone(nums)
	slices.Sort(out)
	return slices.Compact(out)
}
