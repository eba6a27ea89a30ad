package analysis

import (
	"context"
	"fmt"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/common"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/model"
)

const (
	maxTitleLength  = 255
	defaultSeverity = "medium"
)

// FileAnalyzer turns one source file into zero or more vulnerability tasks.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, repositoryID uint32, file *githubcli.CandidateFile) ([]*model.Task, error)
}

type fileAnalyzer struct {
	gemini gemini.GenerativeClient
	logger logging.Logger
}

func NewFileAnalyzer(g gemini.GenerativeClient, l logging.Logger) FileAnalyzer {
	return &fileAnalyzer{gemini: g, logger: l}
}

func (a *fileAnalyzer) AnalyzeFile(ctx context.Context, repositoryID uint32, file *githubcli.CandidateFile) ([]*model.Task, error) {
	prompt := gemini.BuildSecurityAnalysisPrompt(file.Content, file.Path)
	resp, err := a.gemini.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze file, path=%s, err=%w", file.Path, err)
	}
	raws, err := gemini.ParseVulnerabilities(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis response, path=%s, err=%w", file.Path, err)
	}

	var tasks []*model.Task
	for _, raw := range raws {
		vulnType, ok := model.KnownVulnerabilityTypes[raw.Type]
		if !ok {
			a.logger.Warnf(ctx, "Drop finding with unknown vulnerability type: path=%s, type=%s", file.Path, raw.Type)
			continue
		}
		severity := raw.Severity
		if severity == "" {
			severity = defaultSeverity
		}
		tasks = append(tasks, &model.Task{
			RepositoryID:      repositoryID,
			Title:             common.TruncateString(raw.Title, maxTitleLength),
			Description:       raw.Description,
			VulnerabilityType: vulnType,
			FilePath:          file.Path,
			LineNumber:        raw.LineNumber,
			Severity:          severity,
			Status:            model.TaskStatusPending,
			TestStatus:        model.TestStatusPending,
			FixStatus:         model.FixStatusPending,
			OriginalCode:      file.Content,
		})
	}
	return tasks, nil
}
