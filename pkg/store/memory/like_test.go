package memory

import "testing"

func TestMatchLike(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"%an%", "Ana", true},
		{"%an%", "Ann", true},
		{"%an%", "Bob", false},
		{"%AN%", "ana@x.io", true},
		{"%%", "", true},
		{"%", "anything", true},
		{"%a_a%", "Ana", true},
		{"%a_a%", "Anna", false},
		{"%straße%", "STRASSE", true},
		{"%50%%", "50% off", true},
		{"%x%", "", false},
		{"exact", "EXACT", true},
		{"exact", "exactly", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.s, func(t *testing.T) {
			if got := matchLike(tt.pattern, tt.s); got != tt.want {
				t.Errorf("matchLike(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
			}
		})
	}
}
