package sync

import "testing"

func TestExportSummary(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"type":"header","recipe_count":1,"step_count":1,"edge_count":0}` + "\n" + `{"type":"recipe"}` + "\n", "1 recipe, 1 step, 0 edges"},
		{`{"type":"header","recipe_count":4,"step_count":20,"edge_count":9}`, "4 recipes, 20 steps, 9 edges"},
		{`{"type":"recipe"}` + "\n", ""},
		{"not json\n", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := exportSummary([]byte(tc.data)); got != tc.want {
			t.Errorf("exportSummary(%q) = %q, want %q", tc.data, got, tc.want)
		}
	}
}
