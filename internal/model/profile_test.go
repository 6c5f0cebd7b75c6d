package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeLinkedinURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"lowercases host", "https://WWW.LinkedIn.com/in/gregorypascuzzi/", "https://www.linkedin.com/in/gregorypascuzzi", true},
		{"strips query and fragment", "https://www.linkedin.com/in/jsmith/?trk=abc#section", "https://www.linkedin.com/in/jsmith", true},
		{"already canonical is idempotent", "https://www.linkedin.com/in/jsmith", "https://www.linkedin.com/in/jsmith", true},
		{"empty is invalid", "", "", false},
		{"no scheme is invalid", "linkedin.com/in/jsmith", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalizeLinkedinURL(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestProfileClean(t *testing.T) {
	p := &Profile{
		FullName: "  Gregory   Pascuzzi ",
		Skills:   []string{"Go", "Go", "Kubernetes", ""},
	}
	p.Clean()
	assert.Equal(t, "Gregory Pascuzzi", p.FullName)
	assert.Equal(t, []string{"Go", "Kubernetes"}, p.Skills)
}
