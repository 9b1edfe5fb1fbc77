package catalog

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "許可タグは保持される",
			input:    "<p>こんにちは <strong>世界</strong></p>",
			contains: []string{"<p>", "<strong>世界</strong>"},
		},
		{
			name:     "scriptタグは除去される",
			input:    `<p>安全</p><script>alert("xss")</script>`,
			contains: []string{"<p>安全</p>"},
			excludes: []string{"<script>", "alert"},
		},
		{
			name:     "onclickイベント属性は除去される",
			input:    `<p onclick="evil()">テキスト</p>`,
			contains: []string{"<p>テキスト</p>"},
			excludes: []string{"onclick"},
		},
		{
			name:     "httpsのimgは保持される",
			input:    `<img src="https://example.com/a.png" alt="絵">`,
			contains: []string{`src="https://example.com/a.png"`, `alt="絵"`},
		},
		{
			name:     "httpのimgは除去される",
			input:    `<img src="http://example.com/a.png">`,
			excludes: []string{"src="},
		},
		{
			name:     "aタグにnoopenerが付与される",
			input:    `<a href="https://example.com">リンク</a>`,
			contains: []string{`target="_blank"`, "noopener"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, should contain %q", tt.input, got, want)
				}
			}
			for _, forbidden := range tt.excludes {
				if strings.Contains(got, forbidden) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, forbidden)
				}
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewSanitizer()
	input := `<p>テスト<script>x</script><img src="https://e.com/i.png"></p>`

	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("sanitize is not idempotent: %q != %q", once, twice)
	}
}

func TestSanitize_Empty(t *testing.T) {
	s := NewSanitizer()
	if got := s.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}
