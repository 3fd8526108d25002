package render

import (
	"strings"
	"testing"
)

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"heading", "## Causes of the Maji Maji rebellion", []string{"<h2", "Causes of the Maji Maji rebellion</h2>"}},
		{"bold", "The answer is **4**.", []string{"<strong>4</strong>"}},
		{"list", "1. First step\n2. Second step", []string{"<ol>", "<li>First step</li>"}},
		{"table", "| x | y |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"strikethrough", "~~wrong~~", []string{"<del>wrong</del>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Markdown(tt.src)
			if err != nil {
				t.Fatalf("Markdown: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestMarkdownDropsRawHTML(t *testing.T) {
	got, err := Markdown("<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML passed through: %s", got)
	}
}
