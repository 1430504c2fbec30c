package placeholder

import (
	"reflect"
	"testing"
)

func TestProtectRestore(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		protected string
		captured  []string
	}{
		{
			name:      "no protected content",
			in:        "Quarterly results overview",
			protected: "Quarterly results overview",
			captured:  nil,
		},
		{
			name:      "url",
			in:        "See https://example.com/report for details",
			protected: "See [PH0] for details",
			captured:  []string{"https://example.com/report"},
		},
		{
			name:      "email",
			in:        "Contact sales@example.com today",
			protected: "Contact [PH0] today",
			captured:  []string{"sales@example.com"},
		},
		{
			name:      "url and email numbered in order",
			in:        "Visit https://example.com or mail info@example.com",
			protected: "Visit [PH0] or mail [PH1]",
			captured:  []string{"https://example.com", "info@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, captured := Protect(tt.in)
			if got != tt.protected {
				t.Errorf("Protect = %q, want %q", got, tt.protected)
			}
			if !reflect.DeepEqual(captured, tt.captured) {
				t.Errorf("captured = %v, want %v", captured, tt.captured)
			}
			if restored := Restore(got, captured); restored != tt.in {
				t.Errorf("Restore = %q, want %q", restored, tt.in)
			}
		})
	}
}

func TestRestore_TranslatedAround(t *testing.T) {
	protected, captured := Protect("Visit https://example.com for more")
	translated := "Visite [PH0] para más información"
	restored := Restore(translated, captured)
	if restored != "Visite https://example.com para más información" {
		t.Errorf("Restore = %q", restored)
	}
	_ = protected
}

func TestValidate(t *testing.T) {
	_, captured := Protect("https://a.example and https://b.example")
	if missing := Validate("[PH0] kept [PH1]", captured); len(missing) != 0 {
		t.Errorf("expected no missing markers, got %v", missing)
	}
	if missing := Validate("[PH0] only", captured); !reflect.DeepEqual(missing, []int{1}) {
		t.Errorf("missing = %v, want [1]", missing)
	}
}

func TestRestore_UnknownIndexLeftAlone(t *testing.T) {
	if got := Restore("text [PH7] text", []string{"one"}); got != "text [PH7] text" {
		t.Errorf("Restore = %q", got)
	}
}
