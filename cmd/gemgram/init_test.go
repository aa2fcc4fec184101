package main

import (
	"strings"
	"testing"
)

func TestAllowedUsersYAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty denies everyone", "", []string{"allowed_users: []"}},
		{"single user", "alice", []string{`- "alice"`}},
		{"trims and skips blanks", " alice , ,12345 ", []string{`- "alice"`, `- "12345"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := allowedUsersYAML(tt.in)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
		})
	}
}
