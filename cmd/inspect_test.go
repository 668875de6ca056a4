package cmd

import "testing"

func TestTruncName(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"mut_RAF1", 20, "mut_RAF1"},
		{"Survival_Time", 8, "Survival..."},
		{"ab≥cd", 3, "ab..."},
		{"ab≥cd", 5, "ab≥..."},
	}
	for _, tt := range tests {
		if got := truncName(tt.in, tt.max); got != tt.want {
			t.Errorf("truncName(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
