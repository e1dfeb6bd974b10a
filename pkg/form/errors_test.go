package form

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formkit/pkg/schema"
)

func TestMapFieldErrors(t *testing.T) {
	declared := map[string]bool{"name": true, "owner.email": true, "rewards.amount": true}
	declares := func(path string) bool {
		return declared[schema.StripIndexes(path)]
	}

	cases := []struct {
		name    string
		payload map[string][]string
		want    ErrorMapping
	}{
		{
			name:    "plain path",
			payload: map[string][]string{"name": {" taken ", "taken"}},
			want:    ErrorMapping{Fields: map[string]string{"name": "taken"}},
		},
		{
			name:    "json pointer with wrapper",
			payload: map[string][]string{"#/data/owner/email": {"invalid"}},
			want:    ErrorMapping{Fields: map[string]string{"owner.email": "invalid"}},
		},
		{
			name:    "bracketed index",
			payload: map[string][]string{"rewards[2].amount": {"too big"}},
			want:    ErrorMapping{Fields: map[string]string{"rewards.2.amount": "too big"}},
		},
		{
			name:    "deeper than declared",
			payload: map[string][]string{"owner.email.domain": {"unknown domain"}},
			want:    ErrorMapping{Fields: map[string]string{"owner.email": "unknown domain"}},
		},
		{
			name:    "form level keys and unknown paths",
			payload: map[string][]string{"__all__": {"try later"}, "ghost": {"nope"}},
			want:    ErrorMapping{Form: []string{"try later", "nope"}},
		},
		{
			name:    "empty messages dropped",
			payload: map[string][]string{"name": {"  "}},
			want:    ErrorMapping{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapFieldErrors(declares, tc.payload)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStrictSanitizerKeepsPlainText(t *testing.T) {
	s := StrictSanitizer()
	if got := s.Sanitize("fish & chips"); got != "fish & chips" {
		t.Fatalf("got %q", got)
	}
	if got := s.Sanitize(`<img src=x onerror=alert(1)>hi`); got != "hi" {
		t.Fatalf("got %q", got)
	}
}
