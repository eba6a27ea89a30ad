package message

import (
	"encoding/json"
	"errors"
)

// AnalyzeQueueMessage requests one repository analysis run. SessionID is set
// when resuming an interrupted session and empty for fresh runs.
type AnalyzeQueueMessage struct {
	RepositoryID uint32 `json:"repository_id"`
	SessionID    string `json:"session_id,omitempty"`
	CreatePR     bool   `json:"create_pr,omitempty"`
	MaxFiles     int    `json:"max_files,omitempty"`
}

func (m *AnalyzeQueueMessage) Validate() error {
	if m.RepositoryID == 0 {
		return errors.New("required repository_id")
	}
	if m.MaxFiles < 0 {
		return errors.New("max_files must not be negative")
	}
	return nil
}

// VerifyQueueMessage requests one task verification run.
type VerifyQueueMessage struct {
	TaskID   uint32 `json:"task_id"`
	CreatePR bool   `json:"create_pr,omitempty"`
}

func (m *VerifyQueueMessage) Validate() error {
	if m.TaskID == 0 {
		return errors.New("required task_id")
	}
	return nil
}

func ParseAnalyzeMessage(msg string) (*AnalyzeQueueMessage, error) {
	message := &AnalyzeQueueMessage{}
	if err := json.Unmarshal([]byte(msg), message); err != nil {
		return nil, err
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}
	return message, nil
}

func ParseVerifyMessage(msg string) (*VerifyQueueMessage, error) {
	message := &VerifyQueueMessage{}
	if err := json.Unmarshal([]byte(msg), message); err != nil {
		return nil, err
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}
	return message, nil
}
