package postprocess

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Resultados del trimestre",
			want: "Resultados del trimestre",
		},
		{
			name: "reasoning block removed",
			in:   "<thinking>the user wants Spanish</thinking>Resultados del trimestre",
			want: "Resultados del trimestre",
		},
		{
			name: "truncated reasoning removed",
			in:   "Resultados del trimestre<think>now I should",
			want: "Resultados del trimestre",
		},
		{
			name: "instruction echo removed",
			in:   "Here is the improved translation: Resultados del trimestre",
			want: "Resultados del trimestre",
		},
		{
			name: "polite echo removed",
			in:   "Sure, here's the translation: Resultados del trimestre",
			want: "Resultados del trimestre",
		},
		{
			name: "wrapping quotes removed",
			in:   `"Resultados del trimestre"`,
			want: "Resultados del trimestre",
		},
		{
			name: "guillemets removed",
			in:   "«Resultados del trimestre»",
			want: "Resultados del trimestre",
		},
		{
			name: "interior quotes kept",
			in:   `El informe "Q3" está listo`,
			want: `El informe "Q3" está listo`,
		},
		{
			name: "whitespace trimmed",
			in:   "  Resultados del trimestre\n",
			want: "Resultados del trimestre",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
