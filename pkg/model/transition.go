package model

import (
	"fmt"
	"time"
)

// The three status axes are stored independently so observers can query
// each on its own, but a couple of cross-axis combinations are illegal.
// Transitions below are the only places the orchestrator moves a task into
// a terminal state, so the guards live here rather than in the type system.

// MarkCompleted moves the task to its terminal success state. A task can
// complete only after its fix was verified and the proof test passed.
func (t *Task) MarkCompleted(now time.Time) error {
	if t.Status == TaskStatusFalsePositive {
		return fmt.Errorf("task %d is false_positive, cannot complete", t.TaskID)
	}
	if t.FixStatus != FixStatusVerified {
		return fmt.Errorf("task %d fix_status=%s, must be verified to complete", t.TaskID, t.FixStatus)
	}
	if t.TestStatus != TestStatusPassed {
		return fmt.Errorf("task %d test_status=%s, must be passed to complete", t.TaskID, t.TestStatus)
	}
	t.Status = TaskStatusCompleted
	t.VerifiedAt = &now
	t.CompletedAt = &now
	return nil
}

// MarkFalsePositive records the valid terminal outcome for findings that
// either never reproduced or could not be fixed within the retry budget.
func (t *Task) MarkFalsePositive(message string) error {
	if t.Status == TaskStatusCompleted || t.Status == TaskStatusPRCreated {
		return fmt.Errorf("task %d already completed, cannot mark false_positive", t.TaskID)
	}
	t.Status = TaskStatusFalsePositive
	if message != "" {
		t.ValidationMessage = message
	}
	return nil
}

// MarkCompletedAt records session completion. Completed sessions are never
// mutated again, so the guard rejects re-completion.
func (s *AnalysisSession) MarkCompleted(now time.Time) error {
	if s.Status == SessionStatusCompleted {
		return fmt.Errorf("session %s already completed", s.SessionID)
	}
	s.Status = SessionStatusCompleted
	s.CompletedAt = &now
	return nil
}
