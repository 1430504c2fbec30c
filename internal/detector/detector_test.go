package detector

import (
	"testing"
)

func TestDetector_DetectISO(t *testing.T) {
	d := New()

	tests := []struct {
		name     string
		text     string
		wantCode string
		wantOK   bool
	}{
		{
			name:     "empty text",
			text:     "",
			wantCode: "",
			wantOK:   false,
		},
		{
			name:     "english text",
			text:     "Hello, this is a presentation about quarterly results.",
			wantCode: "EN",
			wantOK:   true,
		},
		{
			name:     "spanish text",
			text:     "Hola, esto es una presentación sobre los resultados trimestrales.",
			wantCode: "ES",
			wantOK:   true,
		},
		{
			name:     "german text",
			text:     "Hallo, das ist eine Präsentation über die Quartalsergebnisse.",
			wantCode: "DE",
			wantOK:   true,
		},
		{
			name:     "french text",
			text:     "Bonjour, ceci est une présentation des résultats trimestriels.",
			wantCode: "FR",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := d.DetectISO(tt.text)
			if ok != tt.wantOK {
				t.Errorf("DetectISO(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
				return
			}
			if tt.wantOK && code != tt.wantCode {
				t.Errorf("DetectISO(%q) = %q, want %q", tt.text, code, tt.wantCode)
			}
		})
	}
}

func TestPolicy_AlreadyInLanguage(t *testing.T) {
	p := NewPolicy(New())

	tests := []struct {
		name string
		text string
		lang string
		want bool
	}{
		{
			name: "spanish text with spanish target is skipped",
			text: "Esta diapositiva ya está escrita completamente en español.",
			lang: "es",
			want: true,
		},
		{
			name: "english text with spanish target is translated",
			text: "This slide is written in English and needs translation.",
			lang: "es",
			want: false,
		},
		{
			name: "short text is always translated",
			text: "Hola",
			lang: "es",
			want: false,
		},
		{
			name: "empty text is always translated",
			text: "   ",
			lang: "es",
			want: false,
		},
		{
			name: "regional tag reduces to primary subtag",
			text: "Este texto está escrito claramente en idioma español moderno.",
			lang: "es-MX",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.AlreadyInLanguage(tt.text, tt.lang); got != tt.want {
				t.Errorf("AlreadyInLanguage(%q, %q) = %v, want %v", tt.text, tt.lang, got, tt.want)
			}
		})
	}
}

func TestPolicy_Confirms(t *testing.T) {
	p := NewPolicy(New())

	if !p.Confirms("Resultados del primer trimestre del año fiscal.", "es") {
		t.Error("spanish output for spanish target should be confirmed")
	}
	if p.Confirms("This came back in plain English even though Spanish was requested.", "es") {
		t.Error("confident mismatch should be rejected")
	}
	if !p.Confirms("Ok", "es") {
		t.Error("short output passes without judgement")
	}
	if p.Confirms("", "es") {
		t.Error("empty output is never confirmed")
	}
}
