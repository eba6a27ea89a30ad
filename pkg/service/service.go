package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/google/uuid"

	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/message"
	"github.com/fixit-ai/fixit/pkg/model"
	"github.com/fixit-ai/fixit/pkg/sqs"
)

// FixitService is the operational surface callers use to start analysis
// runs, follow their progress and push tasks through verification. Heavy
// work happens in the queue workers; the service only validates, persists
// and dispatches.
type FixitService struct {
	store      db.Store
	dispatcher sqs.Dispatcher
	logger     logging.Logger
}

func New(store db.Store, dispatcher sqs.Dispatcher, l logging.Logger) *FixitService {
	return &FixitService{
		store:      store,
		dispatcher: dispatcher,
		logger:     l,
	}
}

// StartAnalysis creates a fresh session for the repository and enqueues it.
func (s *FixitService) StartAnalysis(ctx context.Context, repositoryID uint32, createPR bool, maxFiles int) (string, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return "", fmt.Errorf("failed to get repository, repository_id=%d, err=%w", repositoryID, err)
	}
	sessionID := uuid.New().String()
	msg := &message.AnalyzeQueueMessage{
		RepositoryID: repositoryID,
		SessionID:    sessionID,
		CreatePR:     createPR,
		MaxFiles:     maxFiles,
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := s.dispatcher.SendAnalyzeRequest(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to enqueue analysis, repository_id=%d, err=%w", repositoryID, err)
	}
	if err := s.store.UpdateRepositoryStatus(ctx, repositoryID, model.RepositoryStatusAnalyzing, "Queued for analysis"); err != nil {
		s.logger.Warnf(ctx, "Failed to update repository status: repository_id=%d, err=%+v", repositoryID, err)
	}
	s.logger.Infof(ctx, "Queued analysis: repository=%s, session_id=%s", repo.FullName(), sessionID)
	return sessionID, nil
}

// ResumeAnalysis re-enqueues an interrupted session. The worker restores
// its checkpoint and continues where it stopped.
func (s *FixitService) ResumeAnalysis(ctx context.Context, sessionID string) error {
	session, err := s.store.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case model.SessionStatusCompleted, model.SessionStatusCancelled:
		return fmt.Errorf("session %s is %s and cannot be resumed", sessionID, session.Status)
	}
	return s.dispatcher.SendAnalyzeRequest(ctx, &message.AnalyzeQueueMessage{
		RepositoryID: session.RepositoryID,
		SessionID:    session.SessionID,
		CreatePR:     session.CreatePRs,
		MaxFiles:     session.MaxFiles,
	})
}

// CancelSession requests a stop. The running worker observes the status at
// the next file boundary, checkpoints and exits.
func (s *FixitService) CancelSession(ctx context.Context, sessionID string) error {
	session, err := s.store.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case model.SessionStatusCompleted, model.SessionStatusCancelled:
		return fmt.Errorf("session %s is already %s", sessionID, session.Status)
	}
	session.Status = model.SessionStatusCancelled
	if err := s.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to cancel session, session_id=%s, err=%w", sessionID, err)
	}
	s.logger.Infof(ctx, "Session cancelled: session_id=%s", sessionID)
	return nil
}

// SessionProgress is the read model for one analysis session.
type SessionProgress struct {
	SessionID            string
	Status               model.SessionStatus
	TotalFiles           int
	FilesAnalyzed        int
	FilesFailed          int
	PercentComplete      float64
	VulnerabilitiesFound int
	TasksCreated         int
	PRsCreated           int
	EstimatedSecondsLeft int
	HasEstimate          bool
	ErrorMessage         string
}

// GetSessionProgress assembles live progress for a session. The PR counter
// is recomputed from pull request rows so it never lags the workers.
func (s *FixitService) GetSessionProgress(ctx context.Context, sessionID string) (*SessionProgress, error) {
	session, err := s.store.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	progress := &SessionProgress{
		SessionID:            session.SessionID,
		Status:               session.Status,
		TotalFiles:           session.TotalFiles,
		FilesAnalyzed:        session.FilesAnalyzed,
		FilesFailed:          session.FilesFailed,
		PercentComplete:      session.ProgressPercentage(),
		VulnerabilitiesFound: session.VulnerabilitiesFound,
		TasksCreated:         session.TasksCreated,
		PRsCreated:           session.PRsCreated,
		ErrorMessage:         session.ErrorMessage,
	}
	if eta, ok := session.EstimatedTimeRemaining(time.Now()); ok {
		progress.EstimatedSecondsLeft = eta
		progress.HasEstimate = true
	}
	if session.StartedAt != nil {
		count, err := s.store.CountPRsCreatedSince(ctx, session.RepositoryID, *session.StartedAt)
		if err != nil {
			s.logger.Warnf(ctx, "Failed to count pull requests: session_id=%s, err=%+v", sessionID, err)
		} else {
			progress.PRsCreated = count
		}
	}
	return progress, nil
}

// RequestVerification enqueues one task for the verification worker.
func (s *FixitService) RequestVerification(ctx context.Context, taskID uint32, createPR bool) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	switch task.Status {
	case model.TaskStatusCompleted, model.TaskStatusPRCreated, model.TaskStatusFalsePositive:
		return fmt.Errorf("task %d is %s and cannot be verified again", taskID, task.Status)
	case model.TaskStatusRunning, model.TaskStatusValidating:
		return fmt.Errorf("task %d is already being verified", taskID)
	}
	return s.dispatcher.SendVerifyRequest(ctx, &message.VerifyQueueMessage{
		TaskID:   taskID,
		CreatePR: createPR,
	})
}

// ProcessAllPendingTasks enqueues every pending task of a repository and
// returns how many were dispatched. A single enqueue failure aborts, later
// calls skip already dispatched tasks through the claim gate.
func (s *FixitService) ProcessAllPendingTasks(ctx context.Context, repositoryID uint32, createPR bool) (int, error) {
	tasks, err := s.store.ListPendingTasks(ctx, repositoryID)
	if err != nil {
		return 0, err
	}
	dispatched := 0
	for _, task := range tasks {
		if err := s.dispatcher.SendVerifyRequest(ctx, &message.VerifyQueueMessage{
			TaskID:   task.TaskID,
			CreatePR: createPR,
		}); err != nil {
			return dispatched, fmt.Errorf("failed to enqueue task, task_id=%d, err=%w", task.TaskID, err)
		}
		dispatched++
	}
	s.logger.Infof(ctx, "Dispatched pending tasks: repository_id=%d, count=%d", repositoryID, dispatched)
	return dispatched, nil
}
