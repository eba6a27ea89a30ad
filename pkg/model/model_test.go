package model

import (
	"testing"
	"time"
)

func TestProgressPercentage(t *testing.T) {
	cases := []struct {
		name    string
		session *AnalysisSession
		want    float64
	}{
		{
			name:    "Zero total",
			session: &AnalysisSession{TotalFiles: 0, FilesAnalyzed: 3},
			want:    0,
		},
		{
			name:    "Half",
			session: &AnalysisSession{TotalFiles: 10, FilesAnalyzed: 5},
			want:    50,
		},
		{
			name:    "Complete",
			session: &AnalysisSession{TotalFiles: 12, FilesAnalyzed: 12},
			want:    100,
		},
		{
			name:    "Capped at 100",
			session: &AnalysisSession{TotalFiles: 10, FilesAnalyzed: 11},
			want:    100,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.session.ProgressPercentage(); got != c.want {
				t.Fatalf("unexpected percentage: want=%v, got=%v", c.want, got)
			}
		})
	}
}

func TestEstimatedTimeRemaining(t *testing.T) {
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := started.Add(100 * time.Second)

	cases := []struct {
		name    string
		session *AnalysisSession
		want    int
		wantOK  bool
	}{
		{
			name:    "Not started",
			session: &AnalysisSession{TotalFiles: 10},
			wantOK:  false,
		},
		{
			name:    "No files analyzed yet",
			session: &AnalysisSession{TotalFiles: 10, StartedAt: &started},
			wantOK:  false,
		},
		{
			name: "Steady rate",
			session: &AnalysisSession{
				TotalFiles:    20,
				FilesAnalyzed: 10,
				StartedAt:     &started,
			},
			want:   100,
			wantOK: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := c.session.EstimatedTimeRemaining(now)
			if ok != c.wantOK {
				t.Fatalf("unexpected ok: want=%v, got=%v", c.wantOK, ok)
			}
			if ok && got != c.want {
				t.Fatalf("unexpected eta: want=%d, got=%d", c.want, got)
			}
		})
	}
}

func TestMarkCompleted(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		task    *Task
		wantErr bool
	}{
		{
			name: "OK",
			task: &Task{
				TaskID:     1,
				Status:     TaskStatusValidating,
				TestStatus: TestStatusPassed,
				FixStatus:  FixStatusVerified,
			},
		},
		{
			name: "NG(false positive cannot complete)",
			task: &Task{
				TaskID:     2,
				Status:     TaskStatusFalsePositive,
				TestStatus: TestStatusPassed,
				FixStatus:  FixStatusVerified,
			},
			wantErr: true,
		},
		{
			name: "NG(fix not verified)",
			task: &Task{
				TaskID:     3,
				Status:     TaskStatusValidating,
				TestStatus: TestStatusPassed,
				FixStatus:  FixStatusGenerated,
			},
			wantErr: true,
		},
		{
			name: "NG(test not passed)",
			task: &Task{
				TaskID:     4,
				Status:     TaskStatusValidating,
				TestStatus: TestStatusFailed,
				FixStatus:  FixStatusVerified,
			},
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.task.MarkCompleted(now)
			if (err != nil) != c.wantErr {
				t.Fatalf("unexpected error state: wantErr=%v, err=%+v", c.wantErr, err)
			}
			if err == nil {
				if c.task.Status != TaskStatusCompleted {
					t.Fatalf("status not completed: %s", c.task.Status)
				}
				if c.task.VerifiedAt == nil || c.task.CompletedAt == nil {
					t.Fatal("timestamps not set on completion")
				}
			}
		})
	}
}

func TestMarkFalsePositive(t *testing.T) {
	completed := &Task{TaskID: 1, Status: TaskStatusCompleted}
	if err := completed.MarkFalsePositive("nope"); err == nil {
		t.Fatal("expected error marking completed task false_positive")
	}

	pending := &Task{TaskID: 2, Status: TaskStatusValidating}
	if err := pending.MarkFalsePositive("test passed on first run"); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if pending.Status != TaskStatusFalsePositive {
		t.Fatalf("status not false_positive: %s", pending.Status)
	}
	if pending.ValidationMessage != "test passed on first run" {
		t.Fatalf("validation message not set: %s", pending.ValidationMessage)
	}
}

func TestSessionMarkCompleted(t *testing.T) {
	now := time.Now()
	s := &AnalysisSession{SessionID: "abc", Status: SessionStatusRunning}
	if err := s.MarkCompleted(now); err != nil {
		t.Fatalf("unexpected error: %+v", err)
	}
	if s.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if err := s.MarkCompleted(now); err == nil {
		t.Fatal("expected error re-completing session")
	}
}
