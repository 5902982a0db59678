package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"yojana-backend/internal/models"
)

func TestParseLinks(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []models.SchemeLink
	}{
		{
			name: "two links",
			raw:  "Apply: http://a.x | Info: http://b.y",
			want: []models.SchemeLink{
				{Label: "Apply", URL: "http://a.x"},
				{Label: "Info", URL: "http://b.y"},
			},
		},
		{"empty input", "", []models.SchemeLink{}},
		{
			name: "segment without colon is dropped",
			raw:  "Apply: http://a.x | no colon here",
			want: []models.SchemeLink{{Label: "Apply", URL: "http://a.x"}},
		},
		{
			name: "empty label or url is dropped",
			raw:  ": http://a.x | Guide:   | Form: https://f.z/p?q=1",
			want: []models.SchemeLink{{Label: "Form", URL: "https://f.z/p?q=1"}},
		},
		{
			name: "split happens at the first colon only",
			raw:  "Portal:https://portal.gov.in:8443/apply",
			want: []models.SchemeLink{{Label: "Portal", URL: "https://portal.gov.in:8443/apply"}},
		},
		{
			name: "separator needs surrounding spaces",
			raw:  "A: http://a.x|B: http://b.y",
			want: []models.SchemeLink{{Label: "A", URL: "http://a.x|B: http://b.y"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseLinks(tc.raw)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("ParseLinks(%q) mismatch (-want +got):\n%s", tc.raw, diff)
			}
		})
	}
}

func TestParseLinks_NeverNil(t *testing.T) {
	for _, raw := range []string{"", "   ", "nothing", " | "} {
		if got := ParseLinks(raw); got == nil {
			t.Fatalf("expected empty slice for %q, got nil", raw)
		}
	}
}

func TestPrepareSchemes(t *testing.T) {
	in := []models.Scheme{
		{Name: "PM Kisan", Links: "Apply: https://pmkisan.gov.in"},
		{Name: "Mudra"},
	}

	out := PrepareSchemes(in)

	want := []models.Scheme{
		{
			Name:        "PM Kisan",
			Links:       "Apply: https://pmkisan.gov.in",
			ParsedLinks: []models.SchemeLink{{Label: "Apply", URL: "https://pmkisan.gov.in"}},
		},
		{Name: "Mudra", ParsedLinks: []models.SchemeLink{}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("PrepareSchemes mismatch (-want +got):\n%s", diff)
	}
	if in[0].ParsedLinks != nil {
		t.Fatalf("expected input schemes to be left untouched")
	}
	if PrepareSchemes(nil) != nil {
		t.Fatalf("expected nil for no results")
	}
}
