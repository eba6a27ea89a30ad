package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/go-resty/resty/v2"
)

// Notifier publishes analysis progress and task events to an external
// consumer. Delivery is best effort, a failed notification never fails the
// operation that produced it.
type Notifier interface {
	NotifyProgress(ctx context.Context, event *ProgressEvent)
	NotifyLog(ctx context.Context, event *LogEvent)
	NotifyCompletion(ctx context.Context, event *CompletionEvent)
}

type ProgressEvent struct {
	SessionID       string `json:"session_id"`
	RepositoryID    uint32 `json:"repository_id"`
	FilesAnalyzed   int    `json:"files_analyzed"`
	TotalFiles      int    `json:"total_files"`
	PercentComplete int    `json:"percent_complete"`
	TasksCreated    int    `json:"tasks_created"`
	CurrentFile     string `json:"current_file,omitempty"`
}

type LogEvent struct {
	TaskID  uint32 `json:"task_id,omitempty"`
	Level   string `json:"level"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

type CompletionEvent struct {
	SessionID            string `json:"session_id"`
	RepositoryID         uint32 `json:"repository_id"`
	Status               string `json:"status"`
	FilesAnalyzed        int    `json:"files_analyzed"`
	VulnerabilitiesFound int    `json:"vulnerabilities_found"`
	TasksCreated         int    `json:"tasks_created"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

type Config struct {
	WebhookURL string `split_words:"true"`
	Timeout    int    `default:"10"` // seconds
}

// NewNotifier returns a webhook notifier, or a no-op one when no webhook URL
// is configured.
func NewNotifier(conf *Config, l logging.Logger) Notifier {
	if conf.WebhookURL == "" {
		return &nopNotifier{}
	}
	client := resty.New().
		SetTimeout(time.Duration(conf.Timeout) * time.Second).
		SetRetryCount(2)
	return &webhookNotifier{
		client:     client,
		webhookURL: conf.WebhookURL,
		logger:     l,
	}
}

type webhookNotifier struct {
	client     *resty.Client
	webhookURL string
	logger     logging.Logger
}

func (n *webhookNotifier) NotifyProgress(ctx context.Context, event *ProgressEvent) {
	n.post(ctx, "analysis.progress", event)
}

func (n *webhookNotifier) NotifyLog(ctx context.Context, event *LogEvent) {
	n.post(ctx, "task.log", event)
}

func (n *webhookNotifier) NotifyCompletion(ctx context.Context, event *CompletionEvent) {
	n.post(ctx, "analysis.completed", event)
}

type envelope struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

func (n *webhookNotifier) post(ctx context.Context, event string, payload any) {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&envelope{
			Event:     event,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Payload:   payload,
		}).
		Post(n.webhookURL)
	if err != nil {
		n.logger.Warnf(ctx, "Failed to send %s notification: err=%+v", event, err)
		return
	}
	if resp.IsError() {
		n.logger.Warnf(ctx, "Notification endpoint returned error: event=%s, status=%s, body=%s",
			event, resp.Status(), fmt.Sprintf("%.200s", resp.String()))
	}
}

type nopNotifier struct{}

func (n *nopNotifier) NotifyProgress(_ context.Context, _ *ProgressEvent)     {}
func (n *nopNotifier) NotifyLog(_ context.Context, _ *LogEvent)               {}
func (n *nopNotifier) NotifyCompletion(_ context.Context, _ *CompletionEvent) {}
