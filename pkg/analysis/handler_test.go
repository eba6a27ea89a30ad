package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/ca-risken/common/pkg/logging"
	"github.com/jinzhu/gorm"

	"github.com/fixit-ai/fixit/pkg/model"
	"github.com/fixit-ai/fixit/pkg/notify"
)

type handlerStore struct {
	fakeStore
	repo            *model.Repository
	existingSession *model.AnalysisSession
	createdSession  *model.AnalysisSession
}

func (h *handlerStore) GetRepository(_ context.Context, _ uint32) (*model.Repository, error) {
	return h.repo, nil
}

func (h *handlerStore) GetSessionBySessionID(_ context.Context, sessionID string) (*model.AnalysisSession, error) {
	if h.existingSession != nil && h.existingSession.SessionID == sessionID {
		return h.existingSession, nil
	}
	return nil, fmt.Errorf("failed to get session, session_id=%s, err=%w", sessionID, gorm.ErrRecordNotFound)
}

func (h *handlerStore) CreateSession(_ context.Context, session *model.AnalysisSession) error {
	h.createdSession = session
	return nil
}

func newHandlerForTest(store *handlerStore, analyzer FileAnalyzer, files int) *sqsHandler {
	logger := logging.NewLogger()
	runner := NewRunner(store, &fakeGithub{files: candidateFiles(files)}, analyzer,
		notify.NewNotifier(&notify.Config{}, logger), logger)
	return NewHandler(store, runner, logger)
}

func sqsMessage(body string) *types.Message {
	return &types.Message{Body: aws.String(body)}
}

func TestHandleMessage(t *testing.T) {
	t.Run("NG invalid message", func(t *testing.T) {
		h := newHandlerForTest(&handlerStore{}, nil, 0)
		if err := h.HandleMessage(context.Background(), sqsMessage(`{"repository_id":0}`)); err == nil {
			t.Fatal("Expected error but got nil")
		}
	})

	t.Run("OK finished session is dropped", func(t *testing.T) {
		store := &handlerStore{
			repo: testRepo(),
			existingSession: &model.AnalysisSession{
				RepositoryID: 1001,
				SessionID:    "4ac720dc-9b69-4a17-9be3-9715c17a6e5c",
				Status:       model.SessionStatusCompleted,
			},
		}
		analyzer := &fakeAnalyzer{analyze: func(string) ([]*model.Task, error) { return nil, nil }}
		h := newHandlerForTest(store, analyzer, 3)
		err := h.HandleMessage(context.Background(),
			sqsMessage(`{"repository_id":1001,"session_id":"4ac720dc-9b69-4a17-9be3-9715c17a6e5c"}`))
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
		if len(analyzer.calls) != 0 {
			t.Fatal("A finished session must not be re-analyzed")
		}
	})

	t.Run("OK fresh message creates and runs a session", func(t *testing.T) {
		store := &handlerStore{repo: testRepo()}
		analyzer := &fakeAnalyzer{analyze: func(string) ([]*model.Task, error) { return nil, nil }}
		h := newHandlerForTest(store, analyzer, 2)
		err := h.HandleMessage(context.Background(), sqsMessage(`{"repository_id":1001,"create_pr":true,"max_files":10}`))
		if err != nil {
			t.Fatalf("Unexpected error: %+v", err)
		}
		if store.createdSession == nil {
			t.Fatal("A session row must be created for a fresh message")
		}
		if store.createdSession.SessionID == "" {
			t.Fatal("A fresh message must get a generated session id")
		}
		if len(analyzer.calls) != 2 {
			t.Fatalf("Unexpected analyzer calls: %v", analyzer.calls)
		}
		if store.session.Status != model.SessionStatusCompleted {
			t.Fatalf("Unexpected final status: %s", store.session.Status)
		}
	})
}
