package util

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"posts", `"posts"`},
		{"user", `"user"`},
		{"MixedCase", `"MixedCase"`},
		{`weird"name`, `"weird""name"`},
		{"with space", `"with space"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestQualifyName(t *testing.T) {
	if got := QualifyName("public", "posts"); got != `"public"."posts"` {
		t.Errorf("QualifyName = %s", got)
	}
	if got := QualifyName("", "posts"); got != `"posts"` {
		t.Errorf("QualifyName without schema = %s", got)
	}
}
