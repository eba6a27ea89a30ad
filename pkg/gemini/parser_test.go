package gemini

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseVulnerabilities(t *testing.T) {
	line := 42
	cases := []struct {
		name    string
		input   string
		want    []*RawVulnerability
		wantErr bool
	}{
		{
			name:  "Plain JSON array",
			input: `[{"type":"sql_injection","title":"SQLi","description":"string concat in query","line_number":42,"severity":"high"}]`,
			want: []*RawVulnerability{
				{Type: "sql_injection", Title: "SQLi", Description: "string concat in query", LineNumber: &line, Severity: "high"},
			},
		},
		{
			name: "JSON wrapped in markdown fence",
			input: "Here are the findings:\n```json\n" +
				`[{"type":"xss","title":"Reflected XSS","description":"unescaped output","line_number":42,"severity":"medium"}]` +
				"\n```",
			want: []*RawVulnerability{
				{Type: "xss", Title: "Reflected XSS", Description: "unescaped output", LineNumber: &line, Severity: "medium"},
			},
		},
		{
			name: "Fence without language tag",
			input: "```\n" +
				`[{"type":"csrf","title":"Missing token","description":"no csrf protection","severity":"medium"}]` +
				"\n```",
			want: []*RawVulnerability{
				{Type: "csrf", Title: "Missing token", Description: "no csrf protection", Severity: "medium"},
			},
		},
		{
			name:  "Empty array",
			input: `[]`,
			want:  []*RawVulnerability{},
		},
		{
			name:  "Empty response",
			input: "   ",
			want:  nil,
		},
		{
			name:    "Not a list",
			input:   `{"type":"xss"}`,
			wantErr: true,
		},
		{
			name:    "Broken JSON",
			input:   `[{"type":`,
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseVulnerabilities(c.input)
			if (err != nil) != c.wantErr {
				t.Fatalf("unexpected error state: wantErr=%v, err=%+v", c.wantErr, err)
			}
			if c.wantErr {
				if !IsParse(err) {
					t.Fatalf("expected ParseError, got %T", err)
				}
				return
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Fatalf("unexpected result: (-want +got)\n%s", diff)
			}
		})
	}
}

func TestExtractCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Python fence",
			input: "```python\nimport pytest\n\ndef test_x():\n    assert True\n```",
			want:  "import pytest\n\ndef test_x():\n    assert True",
		},
		{
			name:  "Fence without language",
			input: "```\nx = 1\n```",
			want:  "x = 1",
		},
		{
			name:  "No fence",
			input: "def f():\n    return 1",
			want:  "def f():\n    return 1",
		},
		{
			name:  "Empty",
			input: "",
			want:  "",
		},
		{
			name:  "Fence with surrounding prose",
			input: "Sure, here is the code:\n```python\nprint('hi')\n```\nHope this helps!",
			want:  "print('hi')",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractCode(c.input); got != c.want {
				t.Fatalf("unexpected code: want=%q, got=%q", c.want, got)
			}
		})
	}
}

func TestClassifyHTTPError(t *testing.T) {
	g := &geminiClient{}
	cases := []struct {
		name       string
		statusCode int
		check      func(error) bool
	}{
		{name: "429 is rate limit", statusCode: 429, check: IsRateLimit},
		{name: "503 is api error", statusCode: 503, check: func(err error) bool { return !IsRateLimit(err) && !IsNetwork(err) }},
		{name: "400 is api error", statusCode: 400, check: func(err error) bool { return !IsRateLimit(err) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := g.classifyHTTPError(c.statusCode, "quota")
			if err == nil {
				t.Fatal("expected error")
			}
			if !c.check(err) {
				t.Fatalf("unexpected classification: %+v", err)
			}
		})
	}
}
