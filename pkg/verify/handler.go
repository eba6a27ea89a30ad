package verify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	mimosasqs "github.com/ca-risken/common/pkg/sqs"

	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/message"
	"github.com/fixit-ai/fixit/pkg/model"
)

type sqsHandler struct {
	store        db.Store
	orchestrator *Orchestrator
	logger       logging.Logger
}

func NewHandler(store db.Store, orchestrator *Orchestrator, l logging.Logger) *sqsHandler {
	return &sqsHandler{
		store:        store,
		orchestrator: orchestrator,
		logger:       l,
	}
}

func (s *sqsHandler) HandleMessage(ctx context.Context, sqsMsg *types.Message) error {
	msgBody := aws.ToString(sqsMsg.Body)
	s.logger.Infof(ctx, "got message: %s", msgBody)
	msg, err := message.ParseVerifyMessage(msgBody)
	if err != nil {
		s.logger.Errorf(ctx, "Invalid message: msg=%s, err=%+v", msgBody, err)
		return mimosasqs.WrapNonRetryable(err)
	}
	requestID, err := s.logger.GenerateRequestID(fmt.Sprint(msg.TaskID))
	if err != nil {
		s.logger.Warnf(ctx, "Failed to generate requestID: err=%+v", err)
		requestID = fmt.Sprint(msg.TaskID)
	}
	s.logger.Infof(ctx, "start verification, RequestID=%s", requestID)

	// The claim is the concurrency gate: duplicate deliveries and competing
	// workers lose the compare-and-swap and drop the message.
	claimed, err := s.store.ClaimTask(ctx, msg.TaskID)
	if err != nil {
		s.logger.Errorf(ctx, "Failed to claim task: task_id=%d, err=%+v", msg.TaskID, err)
		return err
	}
	if !claimed {
		s.logger.Infof(ctx, "Task already claimed or finished, skip: task_id=%d", msg.TaskID)
		return nil
	}

	task, err := s.store.GetTask(ctx, msg.TaskID)
	if err != nil {
		s.logger.Errorf(ctx, "Failed to get task: task_id=%d, err=%+v", msg.TaskID, err)
		return mimosasqs.WrapNonRetryable(err)
	}
	task.Status = model.TaskStatusRunning
	repo, err := s.store.GetRepository(ctx, task.RepositoryID)
	if err != nil {
		s.logger.Errorf(ctx, "Failed to get repository: repository_id=%d, err=%+v", task.RepositoryID, err)
		return mimosasqs.WrapNonRetryable(err)
	}

	if err := s.orchestrator.Verify(ctx, repo, task, msg.CreatePR); err != nil {
		s.logger.Errorf(ctx, "Failed to verify task: task_id=%d, err=%+v", task.TaskID, err)
		return err
	}
	s.logger.Infof(ctx, "end verification, RequestID=%s, task_id=%d, status=%s", requestID, task.TaskID, task.Status)
	return nil
}
