package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/common"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/model"
)

const maxExplanationLength = 2000

// Generator produces the proof-of-vulnerability test and the remediation
// for a task.
type Generator interface {
	GenerateTest(ctx context.Context, task *model.Task) (string, error)
	GenerateFix(ctx context.Context, task *model.Task, previousFailure string) (code, explanation string, err error)
}

type generator struct {
	gemini gemini.GenerativeClient
	logger logging.Logger
}

func NewGenerator(g gemini.GenerativeClient, l logging.Logger) Generator {
	return &generator{gemini: g, logger: l}
}

func (g *generator) GenerateTest(ctx context.Context, task *model.Task) (string, error) {
	resp, err := g.gemini.GenerateContent(ctx, gemini.BuildTestPrompt(task))
	if err != nil {
		return "", fmt.Errorf("failed to generate test, task_id=%d, err=%w", task.TaskID, err)
	}
	code := gemini.ExtractCode(resp)
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("generated test is empty, task_id=%d", task.TaskID)
	}
	return code, nil
}

// GenerateFix asks for a complete fixed file. When previousFailure is set
// the prompt carries the prior attempt and its test output so the model does
// not repeat the same mistake.
func (g *generator) GenerateFix(ctx context.Context, task *model.Task, previousFailure string) (string, string, error) {
	resp, err := g.gemini.GenerateContent(ctx, gemini.BuildFixPrompt(task, previousFailure))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate fix, task_id=%d, err=%w", task.TaskID, err)
	}
	code := gemini.ExtractCode(resp)
	if strings.TrimSpace(code) == "" {
		return "", "", fmt.Errorf("generated fix is empty, task_id=%d", task.TaskID)
	}
	return code, fixExplanation(resp, code), nil
}

// fixExplanation keeps the prose surrounding the code block as the human
// readable description of what changed.
func fixExplanation(response, code string) string {
	text := strings.Replace(response, code, "", 1)
	text = strings.ReplaceAll(text, "```python", "")
	text = strings.ReplaceAll(text, "```", "")
	return common.CutString(strings.TrimSpace(text), maxExplanationLength)
}
