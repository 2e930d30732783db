package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "senior go engineer", limit: 0, expect: ""},
		{name: "shorter than limit", input: "remote", limit: 10, expect: "remote"},
		{name: "truncated with ellipsis", input: "staffing agency", limit: 8, expect: "staffing..."},
		{name: "surrounding whitespace trimmed", input: "  hybrid  ", limit: 3, expect: "hyb..."},
		{name: "counts runes not bytes", input: "Zürich office", limit: 6, expect: "Zürich..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
