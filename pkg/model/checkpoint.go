package model

import (
	"encoding/json"
	"time"
)

// CheckpointState is the opaque state blob snapshotted with each
// checkpoint. It exists for post-mortem inspection and recovery, not for
// resume logic, which relies only on the processed file set and index.
type CheckpointState struct {
	TasksCreated         int       `json:"tasks_created"`
	VulnerabilitiesFound int       `json:"vulnerabilities_found"`
	FilesFailed          int       `json:"files_failed"`
	Timestamp            time.Time `json:"timestamp"`
}

func (c *Checkpoint) SetProcessedFiles(paths []string) error {
	buf, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	c.ProcessedFiles = string(buf)
	return nil
}

func (c *Checkpoint) ProcessedFileList() ([]string, error) {
	if c.ProcessedFiles == "" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(c.ProcessedFiles), &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func (c *Checkpoint) SetState(state *CheckpointState) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	c.StateData = string(buf)
	return nil
}

func (c *Checkpoint) State() (*CheckpointState, error) {
	if c.StateData == "" {
		return nil, nil
	}
	var state CheckpointState
	if err := json.Unmarshal([]byte(c.StateData), &state); err != nil {
		return nil, err
	}
	return &state, nil
}
