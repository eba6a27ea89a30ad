package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/model"
	"github.com/fixit-ai/fixit/pkg/notify"
)

// DefaultCheckpointInterval is how many newly analyzed files pass between
// checkpoint rows.
const DefaultCheckpointInterval = 5

// DefaultMaxFiles caps a session that did not set its own file limit.
const DefaultMaxFiles = 100

// Runner drives one resumable analysis session over a repository. Progress
// is snapshotted every CheckpointInterval files so a crashed or evicted
// worker can resume without re-analyzing finished files.
type Runner struct {
	store              db.Store
	githubClient       githubcli.GithubServiceClient
	analyzer           FileAnalyzer
	notifier           notify.Notifier
	logger             logging.Logger
	CheckpointInterval int
}

func NewRunner(store db.Store, gc githubcli.GithubServiceClient, analyzer FileAnalyzer, notifier notify.Notifier, l logging.Logger) *Runner {
	return &Runner{
		store:              store,
		githubClient:       gc,
		analyzer:           analyzer,
		notifier:           notifier,
		logger:             l,
		CheckpointInterval: DefaultCheckpointInterval,
	}
}

// Run executes the session until all candidate files are processed, the
// session is cancelled, or a fatal fault stops it. Per-file faults are
// skipped; only rate limiting is fatal.
func (r *Runner) Run(ctx context.Context, repo *model.Repository, session *model.AnalysisSession) error {
	maxFiles := session.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	files, err := r.githubClient.FetchCandidateFiles(ctx, repo, maxFiles)
	if err != nil {
		return r.failSession(ctx, repo, session, fmt.Errorf("failed to fetch candidate files: %w", err))
	}

	// Total is persisted before any file is analyzed so progress readers
	// see a meaningful denominator from the start. Set once: a resume must
	// not move the denominator under readers.
	now := time.Now()
	if session.TotalFiles == 0 {
		session.TotalFiles = len(files)
	}
	session.Status = model.SessionStatusRunning
	if session.StartedAt == nil {
		session.StartedAt = &now
	}
	if err := r.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session, session_id=%s, err=%w", session.SessionID, err)
	}

	processed, processedList, checkpointNumber, err := r.restoreCheckpoint(ctx, session)
	if err != nil {
		return r.failSession(ctx, repo, session, err)
	}
	if checkpointNumber > 0 {
		r.logger.Infof(ctx, "Resuming session from checkpoint: session_id=%s, checkpoint_number=%d, processed=%d",
			session.SessionID, checkpointNumber, len(processed))
	}

	newSinceCheckpoint := 0
	for i, file := range files {
		stopped, err := r.sessionStopped(ctx, session)
		if err != nil {
			return r.failSession(ctx, repo, session, err)
		}
		if stopped {
			r.logger.Infof(ctx, "Session stopped externally, saving checkpoint and exiting: session_id=%s", session.SessionID)
			if err := r.saveCheckpoint(ctx, session, processedList, i, &checkpointNumber); err != nil {
				r.logger.Errorf(ctx, "Failed to save checkpoint on stop: session_id=%s, err=%+v", session.SessionID, err)
			}
			return nil
		}
		if processed[file.Path] {
			continue
		}

		tasks, err := r.analyzer.AnalyzeFile(ctx, repo.RepositoryID, file)
		if err != nil {
			if gemini.IsRateLimit(err) {
				msg := fmt.Sprintf("Rate limit reached after analyzing %d/%d files", session.FilesAnalyzed, session.TotalFiles)
				if cerr := r.saveCheckpoint(ctx, session, processedList, i, &checkpointNumber); cerr != nil {
					r.logger.Errorf(ctx, "Failed to save checkpoint on rate limit: session_id=%s, err=%+v", session.SessionID, cerr)
				}
				return r.failSession(ctx, repo, session, fmt.Errorf("%s: %w", msg, err))
			}
			// Network faults, malformed responses and other per-file
			// errors skip the file and keep the session going.
			r.logger.Warnf(ctx, "Failed to analyze file, skipping: session_id=%s, path=%s, err=%+v",
				session.SessionID, file.Path, err)
			session.FilesFailed++
			if serr := r.store.AddFileFailed(ctx, session.AnalysisSessionID); serr != nil {
				r.logger.Errorf(ctx, "Failed to record file failure: session_id=%s, err=%+v", session.SessionID, serr)
			}
			processed[file.Path] = true
			processedList = append(processedList, file.Path)
			continue
		}

		if len(tasks) > 0 {
			if err := r.store.CreateTasks(ctx, tasks); err != nil {
				return r.failSession(ctx, repo, session, fmt.Errorf("failed to create tasks, path=%s, err=%w", file.Path, err))
			}
			session.VulnerabilitiesFound += len(tasks)
			session.TasksCreated += len(tasks)
		}
		now := time.Now()
		if err := r.store.AddFileAnalyzed(ctx, session.AnalysisSessionID, now); err != nil {
			r.logger.Errorf(ctx, "Failed to record analyzed file: session_id=%s, err=%+v", session.SessionID, err)
		}
		session.FilesAnalyzed++
		session.LastCheckpointAt = &now
		processed[file.Path] = true
		processedList = append(processedList, file.Path)
		newSinceCheckpoint++

		r.reportProgress(ctx, repo, session, file.Path)

		if newSinceCheckpoint >= r.CheckpointInterval {
			if err := r.saveCheckpoint(ctx, session, processedList, i, &checkpointNumber); err != nil {
				r.logger.Errorf(ctx, "Failed to save checkpoint: session_id=%s, err=%+v", session.SessionID, err)
			} else {
				newSinceCheckpoint = 0
			}
		}
	}

	// No trailing checkpoint for the remainder: the completed session row is
	// the terminal record, checkpoints exist only for resume.
	return r.finishSession(ctx, repo, session)
}

func (r *Runner) restoreCheckpoint(ctx context.Context, session *model.AnalysisSession) (map[string]bool, []string, int, error) {
	processed := map[string]bool{}
	checkpoint, err := r.store.GetLatestCheckpoint(ctx, session.AnalysisSessionID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	if checkpoint == nil {
		return processed, nil, 0, nil
	}
	paths, err := checkpoint.ProcessedFileList()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("broken checkpoint data, checkpoint_id=%d, err=%w", checkpoint.CheckpointID, err)
	}
	for _, p := range paths {
		processed[p] = true
	}
	return processed, paths, checkpoint.CheckpointNumber, nil
}

// saveCheckpoint writes the next numbered snapshot. Checkpoint numbers only
// grow within a session.
func (r *Runner) saveCheckpoint(ctx context.Context, session *model.AnalysisSession, processedList []string, lastIndex int, checkpointNumber *int) error {
	*checkpointNumber++
	checkpoint := &model.Checkpoint{
		AnalysisSessionID: session.AnalysisSessionID,
		CheckpointNumber:  *checkpointNumber,
		LastFileIndex:     lastIndex,
	}
	if err := checkpoint.SetProcessedFiles(processedList); err != nil {
		return err
	}
	if err := checkpoint.SetState(&model.CheckpointState{
		TasksCreated:         session.TasksCreated,
		VulnerabilitiesFound: session.VulnerabilitiesFound,
		FilesFailed:          session.FilesFailed,
		Timestamp:            time.Now(),
	}); err != nil {
		return err
	}
	if err := r.store.CreateCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to create checkpoint, session_id=%s, number=%d, err=%w",
			session.SessionID, *checkpointNumber, err)
	}
	r.logger.Debugf(ctx, "Saved checkpoint: session_id=%s, number=%d, processed=%d",
		session.SessionID, *checkpointNumber, len(processedList))
	return nil
}

// sessionStopped checks for external cancellation or pause between files.
func (r *Runner) sessionStopped(ctx context.Context, session *model.AnalysisSession) (bool, error) {
	status, err := r.store.GetSessionStatus(ctx, session.AnalysisSessionID)
	if err != nil {
		return false, fmt.Errorf("failed to get session status, session_id=%s, err=%w", session.SessionID, err)
	}
	return status == model.SessionStatusCancelled || status == model.SessionStatusPaused, nil
}

func (r *Runner) reportProgress(ctx context.Context, repo *model.Repository, session *model.AnalysisSession, currentFile string) {
	progress := fmt.Sprintf("Analyzing %d/%d files", session.FilesAnalyzed, session.TotalFiles)
	if err := r.store.UpdateRepositoryStatus(ctx, repo.RepositoryID, model.RepositoryStatusAnalyzing, progress); err != nil {
		r.logger.Warnf(ctx, "Failed to update repository progress: repository_id=%d, err=%+v", repo.RepositoryID, err)
	}
	r.notifier.NotifyProgress(ctx, &notify.ProgressEvent{
		SessionID:       session.SessionID,
		RepositoryID:    repo.RepositoryID,
		FilesAnalyzed:   session.FilesAnalyzed,
		TotalFiles:      session.TotalFiles,
		PercentComplete: int(session.ProgressPercentage()),
		TasksCreated:    session.TasksCreated,
		CurrentFile:     currentFile,
	})
}

func (r *Runner) finishSession(ctx context.Context, repo *model.Repository, session *model.AnalysisSession) error {
	now := time.Now()

	// The counter on the session can drift from reality when a previous run
	// crashed between task insert and counter update; recount from rows.
	if session.StartedAt != nil {
		count, err := r.store.CountTasksCreatedSince(ctx, repo.RepositoryID, *session.StartedAt)
		if err != nil {
			r.logger.Warnf(ctx, "Failed to recount created tasks: session_id=%s, err=%+v", session.SessionID, err)
		} else {
			session.TasksCreated = count
		}
	}

	if err := session.MarkCompleted(now); err != nil {
		return fmt.Errorf("failed to complete session, session_id=%s, err=%w", session.SessionID, err)
	}
	if err := r.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save completed session, session_id=%s, err=%w", session.SessionID, err)
	}
	if err := r.store.UpdateRepositoryAnalyzed(ctx, repo.RepositoryID, now); err != nil {
		return fmt.Errorf("failed to update repository, repository_id=%d, err=%w", repo.RepositoryID, err)
	}
	r.notifier.NotifyCompletion(ctx, &notify.CompletionEvent{
		SessionID:            session.SessionID,
		RepositoryID:         repo.RepositoryID,
		Status:               string(session.Status),
		FilesAnalyzed:        session.FilesAnalyzed,
		VulnerabilitiesFound: session.VulnerabilitiesFound,
		TasksCreated:         session.TasksCreated,
	})
	r.logger.Infof(ctx, "Analysis session completed: session_id=%s, files=%d/%d, vulnerabilities=%d, tasks=%d",
		session.SessionID, session.FilesAnalyzed, session.TotalFiles, session.VulnerabilitiesFound, session.TasksCreated)
	return nil
}

// failSession marks the session and repository failed and returns the cause
// so the queue layer can decide on redelivery.
func (r *Runner) failSession(ctx context.Context, repo *model.Repository, session *model.AnalysisSession, cause error) error {
	r.logger.Errorf(ctx, "Analysis session failed: session_id=%s, err=%+v", session.SessionID, cause)
	session.Status = model.SessionStatusFailed
	session.ErrorMessage = cause.Error()
	session.RetryCount++
	if err := r.store.SaveSession(ctx, session); err != nil {
		r.logger.Errorf(ctx, "Failed to save failed session: session_id=%s, err=%+v", session.SessionID, err)
	}
	if err := r.store.UpdateRepositoryStatus(ctx, repo.RepositoryID, model.RepositoryStatusError, cause.Error()); err != nil {
		r.logger.Errorf(ctx, "Failed to update repository status: repository_id=%d, err=%+v", repo.RepositoryID, err)
	}
	r.notifier.NotifyCompletion(ctx, &notify.CompletionEvent{
		SessionID:            session.SessionID,
		RepositoryID:         repo.RepositoryID,
		Status:               string(model.SessionStatusFailed),
		FilesAnalyzed:        session.FilesAnalyzed,
		VulnerabilitiesFound: session.VulnerabilitiesFound,
		TasksCreated:         session.TasksCreated,
		ErrorMessage:         session.ErrorMessage,
	})
	return cause
}
