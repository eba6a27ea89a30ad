package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"
	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/gemini"
	"github.com/fixit-ai/fixit/pkg/message"
	"github.com/fixit-ai/fixit/pkg/model"
)

// maxSessionRetries bounds how often a failing session is retried through
// queue redelivery before it is dropped.
const maxSessionRetries = 3

type sqsHandler struct {
	store  db.Store
	runner *Runner
	logger logging.Logger
}

func NewHandler(store db.Store, runner *Runner, l logging.Logger) *sqsHandler {
	return &sqsHandler{
		store:  store,
		runner: runner,
		logger: l,
	}
}

func (s *sqsHandler) HandleMessage(ctx context.Context, sqsMsg *types.Message) error {
	msgBody := aws.ToString(sqsMsg.Body)
	s.logger.Infof(ctx, "got message: %s", msgBody)
	msg, err := message.ParseAnalyzeMessage(msgBody)
	if err != nil {
		s.logger.Errorf(ctx, "Invalid message: msg=%s, err=%+v", msgBody, err)
		return mimosasqs.WrapNonRetryable(err)
	}
	requestID, err := s.logger.GenerateRequestID(fmt.Sprint(msg.RepositoryID))
	if err != nil {
		s.logger.Warnf(ctx, "Failed to generate requestID: err=%+v", err)
		requestID = fmt.Sprint(msg.RepositoryID)
	}
	s.logger.Infof(ctx, "start analysis, RequestID=%s", requestID)

	repo, err := s.store.GetRepository(ctx, msg.RepositoryID)
	if err != nil {
		s.logger.Errorf(ctx, "Failed to get repository: repository_id=%d, err=%+v", msg.RepositoryID, err)
		return mimosasqs.WrapNonRetryable(err)
	}

	session, err := s.findOrCreateSession(ctx, msg)
	if err != nil {
		s.logger.Errorf(ctx, "Failed to prepare session: session_id=%s, err=%+v", msg.SessionID, err)
		return mimosasqs.WrapNonRetryable(err)
	}
	switch session.Status {
	case model.SessionStatusCompleted, model.SessionStatusCancelled:
		s.logger.Infof(ctx, "Session already finished, skip: session_id=%s, status=%s", session.SessionID, session.Status)
		return nil
	case model.SessionStatusFailed:
		if session.RetryCount > maxSessionRetries {
			s.logger.Notifyf(ctx, logging.ErrorLevel, "Session exceeded retry limit, dropping: session_id=%s, retry_count=%d",
				session.SessionID, session.RetryCount)
			return mimosasqs.WrapNonRetryable(fmt.Errorf("session retry limit exceeded, session_id=%s", session.SessionID))
		}
	}

	if err := s.store.UpdateRepositoryStatus(ctx, repo.RepositoryID, model.RepositoryStatusAnalyzing, "Starting analysis"); err != nil {
		s.logger.Errorf(ctx, "Failed to update repository status: repository_id=%d, err=%+v", repo.RepositoryID, err)
		return err
	}

	if err := s.runner.Run(ctx, repo, session); err != nil {
		// A rate limited session keeps its checkpoint; redelivery resumes
		// it once the quota recovers.
		if gemini.IsRateLimit(err) {
			s.logger.Warnf(ctx, "Analysis rate limited, will resume on redelivery: session_id=%s", session.SessionID)
			return err
		}
		s.logger.Errorf(ctx, "Failed to run analysis: session_id=%s, err=%+v", session.SessionID, err)
		return err
	}
	s.logger.Infof(ctx, "end analysis, RequestID=%s", requestID)
	return nil
}

// findOrCreateSession resolves the message's session id to an existing row
// (resume) or creates a fresh pending session (first delivery). Messages
// without a session id get a new one.
func (s *sqsHandler) findOrCreateSession(ctx context.Context, msg *message.AnalyzeQueueMessage) (*model.AnalysisSession, error) {
	if msg.SessionID == "" {
		msg.SessionID = uuid.New().String()
	}
	session, err := s.store.GetSessionBySessionID(ctx, msg.SessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	session = &model.AnalysisSession{
		RepositoryID: msg.RepositoryID,
		SessionID:    msg.SessionID,
		Status:       model.SessionStatusPending,
		CreatePRs:    msg.CreatePR,
		MaxFiles:     msg.MaxFiles,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session, session_id=%s, err=%w", msg.SessionID, err)
	}
	return session, nil
}
