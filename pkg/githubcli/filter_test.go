package githubcli

import (
	"testing"
)

func TestShouldAnalyze(t *testing.T) {
	filter, err := loadFileFilter("")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{
			name:  "OK Python source",
			input: "apps/core/views.py",
			want:  true,
		},
		{
			name:  "OK JavaScript source",
			input: "static/app.js",
			want:  true,
		},
		{
			name:  "NG vendored dependency",
			input: "node_modules/lodash/index.js",
			want:  false,
		},
		{
			name:  "NG python test file",
			input: "apps/core/test_views.py",
			want:  false,
		},
		{
			name:  "NG go test file",
			input: "pkg/server/server_test.go",
			want:  false,
		},
		{
			name:  "NG minified bundle",
			input: "static/app.min.js",
			want:  false,
		},
		{
			name:  "NG migration",
			input: "apps/core/migrations/0001_initial.py",
			want:  false,
		},
		{
			name:  "NG non-source extension",
			input: "README.md",
			want:  false,
		},
		{
			name:  "NG extension only casing handled",
			input: "Main.JAVA",
			want:  true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := filter.shouldAnalyze(c.input); got != c.want {
				t.Fatalf("Unexpected result: input=%s, want=%t, got=%t", c.input, c.want, got)
			}
		})
	}
}
