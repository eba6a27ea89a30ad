package model

import (
	"time"
)

// RepositoryStatus is the coarse analysis state of a tracked repository.
type RepositoryStatus string

const (
	RepositoryStatusIdle      RepositoryStatus = "idle"
	RepositoryStatusAnalyzing RepositoryStatus = "analyzing"
	RepositoryStatusCompleted RepositoryStatus = "completed"
	RepositoryStatusError     RepositoryStatus = "error"
	RepositoryStatusPaused    RepositoryStatus = "paused"
)

// Repository entity
type Repository struct {
	RepositoryID     uint32 `gorm:"primary_key"`
	Owner            string
	RepoName         string
	RepoURL          string `gorm:"unique"`
	Status           RepositoryStatus
	AnalysisProgress string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastAnalyzedAt   *time.Time
}

func (r *Repository) FullName() string {
	return r.Owner + "/" + r.RepoName
}

// VulnerabilityType is the closed set of finding kinds the analyzer reports.
// Unmapped values coming back from the model are dropped at parse time.
type VulnerabilityType string

const (
	VulnSQLInjection            VulnerabilityType = "sql_injection"
	VulnXSS                     VulnerabilityType = "xss"
	VulnCSRF                    VulnerabilityType = "csrf"
	VulnHardcodedSecret         VulnerabilityType = "hardcoded_secret"
	VulnCommandInjection        VulnerabilityType = "command_injection"
	VulnPathTraversal           VulnerabilityType = "path_traversal"
	VulnAuthenticationBypass    VulnerabilityType = "authentication_bypass"
	VulnInsecureDeserialization VulnerabilityType = "insecure_deserialization"
)

// KnownVulnerabilityTypes maps the raw type strings returned by the model to
// the closed enum.
var KnownVulnerabilityTypes = map[string]VulnerabilityType{
	"sql_injection":            VulnSQLInjection,
	"xss":                      VulnXSS,
	"csrf":                     VulnCSRF,
	"hardcoded_secret":         VulnHardcodedSecret,
	"command_injection":        VulnCommandInjection,
	"path_traversal":           VulnPathTraversal,
	"authentication_bypass":    VulnAuthenticationBypass,
	"insecure_deserialization": VulnInsecureDeserialization,
}

// TaskStatus is the coarse overall disposition of a vulnerability task.
type TaskStatus string

const (
	TaskStatusPending       TaskStatus = "pending"
	TaskStatusRunning       TaskStatus = "running"
	TaskStatusValidating    TaskStatus = "validating"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusAbandoned     TaskStatus = "abandoned"
	TaskStatusFalsePositive TaskStatus = "false_positive"
	TaskStatusPRCreated     TaskStatus = "pr_created"
)

// TestStatus tracks the proof-of-vulnerability test lifecycle. A "failed"
// test is the desired signal during confirmation: it proves the
// vulnerability is reproducible.
type TestStatus string

const (
	TestStatusPending   TestStatus = "pending"
	TestStatusGenerated TestStatus = "generated"
	TestStatusFailed    TestStatus = "failed"
	TestStatusPassed    TestStatus = "passed"
	TestStatusError     TestStatus = "error"
)

// FixStatus tracks the remediation artifact lifecycle.
type FixStatus string

const (
	FixStatusPending   FixStatus = "pending"
	FixStatusGenerated FixStatus = "generated"
	FixStatusApplied   FixStatus = "applied"
	FixStatusVerified  FixStatus = "verified"
	FixStatusFailed    FixStatus = "failed"
)

// Task entity. One confirmed-or-candidate vulnerability finding.
// OriginalCode is captured at discovery time and never overwritten; the
// orchestrator is the only mutator of the three status axes.
type Task struct {
	TaskID            uint32 `gorm:"primary_key"`
	RepositoryID      uint32
	Title             string
	Description       string `gorm:"type:text"`
	VulnerabilityType VulnerabilityType
	FilePath          string
	LineNumber        *int
	Severity          string
	Status            TaskStatus
	TestCode          string `gorm:"type:text"`
	TestStatus        TestStatus
	FixCode           string `gorm:"type:text"`
	FixStatus         FixStatus
	FixExplanation    string `gorm:"type:text"`
	RetryCount        int
	ValidationMessage string `gorm:"type:text"`
	OriginalCode      string `gorm:"type:text"`
	PRURL             string
	VerifiedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}

// SessionStatus is the lifecycle state of an analysis session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// AnalysisSession entity. One resumable analysis run over a repository.
type AnalysisSession struct {
	AnalysisSessionID    uint32 `gorm:"primary_key"`
	RepositoryID         uint32
	SessionID            string `gorm:"unique"`
	TotalFiles           int
	FilesAnalyzed        int
	FilesFailed          int
	Status               SessionStatus
	VulnerabilitiesFound int
	TasksCreated         int
	PRsCreated           int
	StartedAt            *time.Time
	CompletedAt          *time.Time
	LastCheckpointAt     *time.Time
	ErrorMessage         string `gorm:"type:text"`
	RetryCount           int
	CreatePRs            bool
	MaxFiles             int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ProgressPercentage returns analysis progress in percent, capped at 100.
func (s *AnalysisSession) ProgressPercentage() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	p := float64(s.FilesAnalyzed) / float64(s.TotalFiles) * 100
	if p > 100 {
		return 100
	}
	return p
}

// EstimatedTimeRemaining estimates seconds left at the current analysis
// rate. Returns false when there is not enough data to estimate.
func (s *AnalysisSession) EstimatedTimeRemaining(now time.Time) (int, bool) {
	if s.StartedAt == nil || s.FilesAnalyzed == 0 {
		return 0, false
	}
	elapsed := now.Sub(*s.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	rate := float64(s.FilesAnalyzed) / elapsed
	if rate <= 0 {
		return 0, false
	}
	remaining := s.TotalFiles - s.FilesAnalyzed
	return int(float64(remaining) / rate), true
}

// Checkpoint entity. Immutable snapshot of analysis progress; the highest
// CheckpointNumber per session is authoritative for resume.
type Checkpoint struct {
	CheckpointID      uint32 `gorm:"primary_key"`
	AnalysisSessionID uint32
	CheckpointNumber  int
	ProcessedFiles    string `gorm:"type:text"` // JSON array of file paths
	LastFileIndex     int
	StateData         string `gorm:"type:text"` // JSON blob of running totals
	CreatedAt         time.Time
}

// LogLevel is the severity of a task audit log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// TaskLog entity. Append-only audit trail for a task; state fields on the
// task are overwritten in place, the log keeps the history of attempts.
type TaskLog struct {
	TaskLogID uint32 `gorm:"primary_key"`
	TaskID    uint32
	Level     LogLevel
	Action    string
	Message   string `gorm:"type:text"`
	CreatedAt time.Time
}

// PRStatus is the state of a created pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "open"
	PRStatusMerged PRStatus = "merged"
	PRStatusClosed PRStatus = "closed"
	PRStatusDraft  PRStatus = "draft"
)

// PullRequest entity. Links a verified fix to the pull request opened for it.
type PullRequest struct {
	PullRequestID uint32 `gorm:"primary_key"`
	TaskID        uint32
	RepositoryID  uint32
	PRNumber      int
	PRURL         string
	BranchName    string
	Title         string
	Description   string `gorm:"type:text"`
	Status        PRStatus
	CreatedAt     time.Time
	MergedAt      *time.Time
}
