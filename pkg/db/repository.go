package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jinzhu/gorm"

	"github.com/fixit-ai/fixit/pkg/model"
)

// Store is the persistence surface consumed by the analysis runner, the
// verification orchestrator and the service facade. Context parameters are
// accepted for call-site symmetry with the rest of the codebase even though
// gorm v1 does not thread them through.
type Store interface {
	GetRepository(ctx context.Context, repositoryID uint32) (*model.Repository, error)
	UpdateRepositoryStatus(ctx context.Context, repositoryID uint32, status model.RepositoryStatus, progress string) error
	UpdateRepositoryAnalyzed(ctx context.Context, repositoryID uint32, analyzedAt time.Time) error

	CreateSession(ctx context.Context, session *model.AnalysisSession) error
	GetSessionBySessionID(ctx context.Context, sessionID string) (*model.AnalysisSession, error)
	GetSessionStatus(ctx context.Context, analysisSessionID uint32) (model.SessionStatus, error)
	SaveSession(ctx context.Context, session *model.AnalysisSession) error
	AddFileAnalyzed(ctx context.Context, analysisSessionID uint32, checkpointAt time.Time) error
	AddFileFailed(ctx context.Context, analysisSessionID uint32) error

	CreateCheckpoint(ctx context.Context, checkpoint *model.Checkpoint) error
	GetLatestCheckpoint(ctx context.Context, analysisSessionID uint32) (*model.Checkpoint, error)

	CreateTasks(ctx context.Context, tasks []*model.Task) error
	GetTask(ctx context.Context, taskID uint32) (*model.Task, error)
	SaveTask(ctx context.Context, task *model.Task) error
	ClaimTask(ctx context.Context, taskID uint32) (bool, error)
	ListPendingTasks(ctx context.Context, repositoryID uint32) ([]*model.Task, error)
	CountTasksCreatedSince(ctx context.Context, repositoryID uint32, since time.Time) (int, error)

	AppendTaskLog(ctx context.Context, taskID uint32, level model.LogLevel, action, message string) error
	ListTaskLogs(ctx context.Context, taskID uint32) ([]*model.TaskLog, error)

	CreatePullRequest(ctx context.Context, pr *model.PullRequest) error
	CountPRsCreatedSince(ctx context.Context, repositoryID uint32, since time.Time) (int, error)
}

var _ Store = (*Client)(nil)

func (c *Client) GetRepository(ctx context.Context, repositoryID uint32) (*model.Repository, error) {
	var repo model.Repository
	if err := c.SlaveDB.Where("repository_id = ?", repositoryID).First(&repo).Error; err != nil {
		return nil, fmt.Errorf("failed to get repository, repository_id=%d, err=%w", repositoryID, err)
	}
	return &repo, nil
}

func (c *Client) UpdateRepositoryStatus(ctx context.Context, repositoryID uint32, status model.RepositoryStatus, progress string) error {
	updates := map[string]interface{}{"status": status}
	if progress != "" {
		updates["analysis_progress"] = progress
	}
	return c.MasterDB.Model(&model.Repository{}).
		Where("repository_id = ?", repositoryID).
		Updates(updates).Error
}

func (c *Client) UpdateRepositoryAnalyzed(ctx context.Context, repositoryID uint32, analyzedAt time.Time) error {
	return c.MasterDB.Model(&model.Repository{}).
		Where("repository_id = ?", repositoryID).
		Updates(map[string]interface{}{
			"status":           model.RepositoryStatusCompleted,
			"last_analyzed_at": analyzedAt,
		}).Error
}

func (c *Client) CreateSession(ctx context.Context, session *model.AnalysisSession) error {
	return c.MasterDB.Create(session).Error
}

func (c *Client) GetSessionBySessionID(ctx context.Context, sessionID string) (*model.AnalysisSession, error) {
	var session model.AnalysisSession
	if err := c.SlaveDB.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to get session, session_id=%s, err=%w", sessionID, err)
	}
	return &session, nil
}

func (c *Client) GetSessionStatus(ctx context.Context, analysisSessionID uint32) (model.SessionStatus, error) {
	var session model.AnalysisSession
	err := c.SlaveDB.Select("status").
		Where("analysis_session_id = ?", analysisSessionID).
		First(&session).Error
	if err != nil {
		return "", err
	}
	return session.Status, nil
}

func (c *Client) SaveSession(ctx context.Context, session *model.AnalysisSession) error {
	return c.MasterDB.Save(session).Error
}

// AddFileAnalyzed bumps the analyzed counter atomically in SQL so that
// concurrent status readers never observe a torn update.
func (c *Client) AddFileAnalyzed(ctx context.Context, analysisSessionID uint32, checkpointAt time.Time) error {
	return c.MasterDB.Model(&model.AnalysisSession{}).
		Where("analysis_session_id = ?", analysisSessionID).
		Updates(map[string]interface{}{
			"files_analyzed":     gorm.Expr("files_analyzed + ?", 1),
			"last_checkpoint_at": checkpointAt,
		}).Error
}

func (c *Client) AddFileFailed(ctx context.Context, analysisSessionID uint32) error {
	return c.MasterDB.Model(&model.AnalysisSession{}).
		Where("analysis_session_id = ?", analysisSessionID).
		Update("files_failed", gorm.Expr("files_failed + ?", 1)).Error
}

func (c *Client) CreateCheckpoint(ctx context.Context, checkpoint *model.Checkpoint) error {
	return c.MasterDB.Create(checkpoint).Error
}

func (c *Client) GetLatestCheckpoint(ctx context.Context, analysisSessionID uint32) (*model.Checkpoint, error) {
	var checkpoint model.Checkpoint
	err := c.SlaveDB.Where("analysis_session_id = ?", analysisSessionID).
		Order("checkpoint_number desc").
		First(&checkpoint).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest checkpoint, analysis_session_id=%d, err=%w", analysisSessionID, err)
	}
	return &checkpoint, nil
}

func (c *Client) CreateTasks(ctx context.Context, tasks []*model.Task) error {
	for _, task := range tasks {
		if err := c.MasterDB.Create(task).Error; err != nil {
			return fmt.Errorf("failed to create task, title=%s, err=%w", task.Title, err)
		}
	}
	return nil
}

func (c *Client) GetTask(ctx context.Context, taskID uint32) (*model.Task, error) {
	var task model.Task
	if err := c.SlaveDB.Where("task_id = ?", taskID).First(&task).Error; err != nil {
		return nil, fmt.Errorf("failed to get task, task_id=%d, err=%w", taskID, err)
	}
	return &task, nil
}

func (c *Client) SaveTask(ctx context.Context, task *model.Task) error {
	return c.MasterDB.Save(task).Error
}

// ClaimTask performs the single-flight transition into the running state.
// The compare-and-swap on status guarantees two workers never drive the
// same task's state machine concurrently; the loser sees claimed=false.
func (c *Client) ClaimTask(ctx context.Context, taskID uint32) (bool, error) {
	result := c.MasterDB.Model(&model.Task{}).
		Where("task_id = ? AND status IN (?)", taskID, []model.TaskStatus{
			model.TaskStatusPending, model.TaskStatusFailed,
		}).
		Updates(map[string]interface{}{
			"status":     model.TaskStatusRunning,
			"started_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (c *Client) ListPendingTasks(ctx context.Context, repositoryID uint32) ([]*model.Task, error) {
	var tasks []*model.Task
	err := c.SlaveDB.Where("repository_id = ? AND status = ?", repositoryID, model.TaskStatusPending).
		Order("task_id asc").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks, repository_id=%d, err=%w", repositoryID, err)
	}
	return tasks, nil
}

func (c *Client) CountTasksCreatedSince(ctx context.Context, repositoryID uint32, since time.Time) (int, error) {
	var count int
	err := c.SlaveDB.Model(&model.Task{}).
		Where("repository_id = ? AND created_at >= ?", repositoryID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Client) AppendTaskLog(ctx context.Context, taskID uint32, level model.LogLevel, action, message string) error {
	return c.MasterDB.Create(&model.TaskLog{
		TaskID:  taskID,
		Level:   level,
		Action:  action,
		Message: message,
	}).Error
}

func (c *Client) ListTaskLogs(ctx context.Context, taskID uint32) ([]*model.TaskLog, error) {
	var logs []*model.TaskLog
	err := c.SlaveDB.Where("task_id = ?", taskID).
		Order("task_log_id asc").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list task logs, task_id=%d, err=%w", taskID, err)
	}
	return logs, nil
}

func (c *Client) CreatePullRequest(ctx context.Context, pr *model.PullRequest) error {
	return c.MasterDB.Create(pr).Error
}

func (c *Client) CountPRsCreatedSince(ctx context.Context, repositoryID uint32, since time.Time) (int, error) {
	var count int
	err := c.SlaveDB.Model(&model.PullRequest{}).
		Where("repository_id = ? AND created_at >= ?", repositoryID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
