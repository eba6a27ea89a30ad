package githubcli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-github/v44/github"

	"github.com/fixit-ai/fixit/pkg/common"
	"github.com/fixit-ai/fixit/pkg/model"
)

// maxCandidateFileSize skips files too large to analyze in a single prompt.
const maxCandidateFileSize = 100 * 1024

// FetchCandidateFiles lists the repository's analyzable source files with
// their content. A file that cannot be fetched is skipped, never fatal.
func (g *githubClient) FetchCandidateFiles(ctx context.Context, repo *model.Repository, maxFiles int) ([]*CandidateFile, error) {
	switch g.conf.FetchMode {
	case "clone":
		return g.fetchByClone(ctx, repo, maxFiles)
	default:
		return g.fetchByAPI(ctx, repo, maxFiles)
	}
}

func (g *githubClient) fetchByAPI(ctx context.Context, repo *model.Repository, maxFiles int) ([]*CandidateFile, error) {
	client, err := g.newV3Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create github client: %w", err)
	}
	r, _, err := client.Repositories.Get(ctx, repo.Owner, repo.RepoName)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", repo.FullName(), err)
	}
	branch := r.GetDefaultBranch()

	tree, _, err := client.Git.GetTree(ctx, repo.Owner, repo.RepoName, branch, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s@%s: %w", repo.FullName(), branch, err)
	}
	if tree.GetTruncated() {
		g.logger.Warnf(ctx, "Repository tree truncated by GitHub, analysis may miss files: repository=%s", repo.FullName())
	}

	var files []*CandidateFile
	for _, entry := range tree.Entries {
		if len(files) >= maxFiles {
			break
		}
		if entry.GetType() != "blob" || !g.filter.shouldAnalyze(entry.GetPath()) {
			continue
		}
		if entry.GetSize() > maxCandidateFileSize {
			g.logger.Debugf(ctx, "Skip too large file: path=%s, size=%d", entry.GetPath(), entry.GetSize())
			continue
		}
		content, err := g.fetchFileContent(ctx, client, repo, entry.GetPath(), branch)
		if err != nil {
			g.logger.Warnf(ctx, "Failed to fetch file content, skip: repository=%s, path=%s, err=%+v",
				repo.FullName(), entry.GetPath(), err)
			continue
		}
		files = append(files, &CandidateFile{Path: entry.GetPath(), Content: content})
	}
	g.logger.Infof(ctx, "Fetched candidate files: repository=%s, branch=%s, count=%d", repo.FullName(), branch, len(files))
	return files, nil
}

func (g *githubClient) fetchFileContent(ctx context.Context, client *github.Client, repo *model.Repository, path, ref string) (string, error) {
	fc, _, _, err := client.Repositories.GetContents(ctx, repo.Owner, repo.RepoName, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", err
	}
	if fc == nil {
		return "", fmt.Errorf("not a file: %s", path)
	}
	return fc.GetContent()
}

func (g *githubClient) fetchByClone(ctx context.Context, repo *model.Repository, maxFiles int) ([]*CandidateFile, error) {
	dir, err := common.CreateCloneDir(repo.RepoName)
	if err != nil {
		return nil, fmt.Errorf("failed to create clone dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := g.clone(ctx, repo.RepoURL, dir); err != nil {
		return nil, err
	}

	var files []*CandidateFile
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if len(files) >= maxFiles {
			return filepath.SkipAll
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !g.filter.shouldAnalyze(rel) || info.Size() > maxCandidateFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			g.logger.Warnf(ctx, "Failed to read cloned file, skip: path=%s, err=%+v", rel, err)
			return nil
		}
		files = append(files, &CandidateFile{Path: rel, Content: string(content)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk cloned repository %s: %w", repo.FullName(), err)
	}
	g.logger.Infof(ctx, "Fetched candidate files from clone: repository=%s, count=%d", repo.FullName(), len(files))
	return files, nil
}
