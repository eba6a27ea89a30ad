package analysis

import (
	"context"
	"strings"
	"testing"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/model"
)

type fakeGenerativeClient struct {
	response string
	err      error
}

func (f *fakeGenerativeClient) GenerateContent(_ context.Context, _ string) (string, error) {
	return f.response, f.err
}

func TestAnalyzeFile(t *testing.T) {
	file := &githubcli.CandidateFile{
		Path:    "apps/core/views.py",
		Content: "def login(request): ...",
	}
	cases := []struct {
		name     string
		response string
		want     int
	}{
		{
			name: "OK two known findings",
			response: `[
				{"type": "sql_injection", "title": "Raw query built from user input", "description": "d", "line_number": 12, "severity": "high"},
				{"type": "xss", "title": "Unescaped template variable", "description": "d", "severity": "medium"}
			]`,
			want: 2,
		},
		{
			name: "OK unknown type dropped",
			response: `[
				{"type": "quantum_injection", "title": "t", "description": "d"},
				{"type": "csrf", "title": "Missing CSRF token", "description": "d"}
			]`,
			want: 1,
		},
		{
			name:     "OK clean file",
			response: `[]`,
			want:     0,
		},
	}
	a := NewFileAnalyzer(nil, logging.NewLogger())
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a.(*fileAnalyzer).gemini = &fakeGenerativeClient{response: c.response}
			tasks, err := a.AnalyzeFile(context.Background(), 1001, file)
			if err != nil {
				t.Fatalf("Unexpected error: %+v", err)
			}
			if len(tasks) != c.want {
				t.Fatalf("Unexpected task count: want=%d, got=%d", c.want, len(tasks))
			}
		})
	}
}

func TestAnalyzeFileDefaults(t *testing.T) {
	a := NewFileAnalyzer(&fakeGenerativeClient{
		response: `[{"type": "hardcoded_secret", "title": "` + strings.Repeat("x", 300) + `", "description": "d"}]`,
	}, logging.NewLogger())
	tasks, err := a.AnalyzeFile(context.Background(), 1001, &githubcli.CandidateFile{
		Path:    "config.py",
		Content: "SECRET_KEY = 'abc'",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Unexpected task count: %d", len(tasks))
	}
	task := tasks[0]
	if task.Severity != defaultSeverity {
		t.Fatalf("Missing severity must default: got=%s", task.Severity)
	}
	if len(task.Title) > maxTitleLength {
		t.Fatalf("Title must be truncated: len=%d", len(task.Title))
	}
	if task.Status != model.TaskStatusPending || task.TestStatus != model.TestStatusPending || task.FixStatus != model.FixStatusPending {
		t.Fatalf("New task must start pending on every axis: %+v", task)
	}
	if task.OriginalCode != "SECRET_KEY = 'abc'" {
		t.Fatal("Original file content must be captured at discovery time")
	}
}
