package githubcli

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v44/github"

	"github.com/fixit-ai/fixit/pkg/model"
)

// CreateFixBranch branches off the repository's default branch for the
// task's fix. When the preferred name already exists a timestamp suffix is
// appended instead of failing.
func (g *githubClient) CreateFixBranch(ctx context.Context, repo *model.Repository, task *model.Task) (string, error) {
	client, err := g.newV3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create github client: %w", err)
	}
	r, _, err := client.Repositories.Get(ctx, repo.Owner, repo.RepoName)
	if err != nil {
		return "", fmt.Errorf("failed to get repository %s: %w", repo.FullName(), err)
	}
	baseRef, _, err := client.Git.GetRef(ctx, repo.Owner, repo.RepoName, "refs/heads/"+r.GetDefaultBranch())
	if err != nil {
		return "", fmt.Errorf("failed to get base ref %s: %w", r.GetDefaultBranch(), err)
	}

	branchName := FixBranchName(task)
	if _, resp, err := client.Git.GetRef(ctx, repo.Owner, repo.RepoName, "refs/heads/"+branchName); err == nil {
		branchName = fmt.Sprintf("%s-%d", branchName, time.Now().Unix())
		g.logger.Infof(ctx, "Fix branch already exists, using %s instead", branchName)
	} else if resp == nil || resp.StatusCode != 404 {
		return "", fmt.Errorf("failed to check branch %s: %w", branchName, err)
	}

	_, _, err = client.Git.CreateRef(ctx, repo.Owner, repo.RepoName, &github.Reference{
		Ref:    github.String("refs/heads/" + branchName),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create branch %s: %w", branchName, err)
	}
	g.logger.Infof(ctx, "Created fix branch: repository=%s, branch=%s", repo.FullName(), branchName)
	return branchName, nil
}

// FixBranchName derives the branch name for a task's fix,
// e.g. "fix/sql-injection-task-42".
func FixBranchName(task *model.Task) string {
	kind := strings.ReplaceAll(string(task.VulnerabilityType), "_", "-")
	return fmt.Sprintf("fix/%s-task-%d", kind, task.TaskID)
}

// CommitFixAndTest writes the fixed file and its regression test to the
// branch in a single commit through the git data API, and returns the
// commit SHA. The fix content is validated before anything is written.
func (g *githubClient) CommitFixAndTest(ctx context.Context, repo *model.Repository, task *model.Task, branchName string) (string, error) {
	if err := g.validateFixContent(ctx, task); err != nil {
		return "", err
	}
	client, err := g.newV3Client(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create github client: %w", err)
	}
	ref, _, err := client.Git.GetRef(ctx, repo.Owner, repo.RepoName, "refs/heads/"+branchName)
	if err != nil {
		return "", fmt.Errorf("failed to get branch ref %s: %w", branchName, err)
	}
	parent, _, err := client.Git.GetCommit(ctx, repo.Owner, repo.RepoName, ref.Object.GetSHA())
	if err != nil {
		return "", fmt.Errorf("failed to get parent commit: %w", err)
	}

	entries := []*github.TreeEntry{
		{
			Path:    github.String(task.FilePath),
			Mode:    github.String("100644"),
			Type:    github.String("blob"),
			Content: github.String(task.FixCode),
		},
	}
	if task.TestCode != "" {
		entries = append(entries, &github.TreeEntry{
			Path:    github.String(TestFilePath(task.FilePath)),
			Mode:    github.String("100644"),
			Type:    github.String("blob"),
			Content: github.String(task.TestCode),
		})
	}
	tree, _, err := client.Git.CreateTree(ctx, repo.Owner, repo.RepoName, parent.Tree.GetSHA(), entries)
	if err != nil {
		return "", fmt.Errorf("failed to create tree: %w", err)
	}

	message := fmt.Sprintf("fix: %s in %s\n\n%s", task.VulnerabilityType, task.FilePath, task.Title)
	commit, _, err := client.Git.CreateCommit(ctx, repo.Owner, repo.RepoName, &github.Commit{
		Message: github.String(message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: parent.SHA}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create commit: %w", err)
	}

	ref.Object.SHA = commit.SHA
	if _, _, err := client.Git.UpdateRef(ctx, repo.Owner, repo.RepoName, ref, false); err != nil {
		return "", fmt.Errorf("failed to update ref %s: %w", branchName, err)
	}
	g.logger.Infof(ctx, "Committed fix: repository=%s, branch=%s, sha=%s", repo.FullName(), branchName, commit.GetSHA())
	return commit.GetSHA(), nil
}

const minFixContentLength = 50

// validateFixContent rejects fix content that is obviously broken before it
// reaches the repository. A fix far smaller than the original file is
// suspicious but not fatal.
func (g *githubClient) validateFixContent(ctx context.Context, task *model.Task) error {
	fix := strings.TrimSpace(task.FixCode)
	if fix == "" {
		return fmt.Errorf("fix content is empty: task_id=%d", task.TaskID)
	}
	if len(fix) < minFixContentLength {
		return fmt.Errorf("fix content too short (%d chars): task_id=%d", len(fix), task.TaskID)
	}
	if task.OriginalCode != "" && len(fix)*2 < len(task.OriginalCode) {
		g.logger.Warnf(ctx, "Fix content is less than half the original file size: task_id=%d, fix=%d, original=%d",
			task.TaskID, len(fix), len(task.OriginalCode))
	}
	return nil
}

// TestFilePath places the generated regression test next to the target file,
// e.g. "app/views.py" -> "app/test_views.py".
func TestFilePath(filePath string) string {
	dir, name := path.Split(filePath)
	return dir + "test_" + name
}

// OpenPullRequest opens a pull request from the fix branch against the
// repository's default branch.
func (g *githubClient) OpenPullRequest(ctx context.Context, repo *model.Repository, task *model.Task, branchName string) (*PullRequestResult, error) {
	client, err := g.newV3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}
	r, _, err := client.Repositories.Get(ctx, repo.Owner, repo.RepoName)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", repo.FullName(), err)
	}
	title := fmt.Sprintf("Security fix: %s", task.Title)
	body := buildPullRequestBody(task)
	pr, _, err := client.PullRequests.Create(ctx, repo.Owner, repo.RepoName, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(branchName),
		Base:  github.String(r.GetDefaultBranch()),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	g.logger.Infof(ctx, "Opened pull request: repository=%s, number=%d, url=%s",
		repo.FullName(), pr.GetNumber(), pr.GetHTMLURL())
	return &PullRequestResult{
		Number:     pr.GetNumber(),
		URL:        pr.GetHTMLURL(),
		BranchName: branchName,
	}, nil
}

func buildPullRequestBody(task *model.Task) string {
	var b strings.Builder
	b.WriteString("## Automated security fix\n\n")
	fmt.Fprintf(&b, "- **Vulnerability**: %s\n", task.VulnerabilityType)
	fmt.Fprintf(&b, "- **Severity**: %s\n", task.Severity)
	fmt.Fprintf(&b, "- **File**: `%s`\n", task.FilePath)
	if task.LineNumber != nil {
		fmt.Fprintf(&b, "- **Line**: %d\n", *task.LineNumber)
	}
	b.WriteString("\n### Description\n\n")
	b.WriteString(task.Description)
	if task.FixExplanation != "" {
		b.WriteString("\n\n### Fix\n\n")
		b.WriteString(task.FixExplanation)
	}
	b.WriteString("\n\nThe fix was verified against a generated regression test before this pull request was opened.\n")
	return b.String()
}
