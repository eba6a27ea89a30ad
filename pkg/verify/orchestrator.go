package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/fixit-ai/fixit/pkg/common"
	"github.com/fixit-ai/fixit/pkg/db"
	"github.com/fixit-ai/fixit/pkg/githubcli"
	"github.com/fixit-ai/fixit/pkg/model"
	"github.com/fixit-ai/fixit/pkg/notify"
)

// MaxFixRetries is how many extra fix attempts follow a failed first one.
const MaxFixRetries = 1

const maxValidationMessageLength = 2000

// Orchestrator drives one task through verification: generate a proof test,
// confirm the vulnerability against the original code, generate a fix,
// verify the fix against the same test, and optionally open a pull request.
type Orchestrator struct {
	store        db.Store
	generator    Generator
	executor     TestExecutor
	githubClient githubcli.GithubServiceClient
	notifier     notify.Notifier
	logger       logging.Logger
}

func NewOrchestrator(store db.Store, gen Generator, ex TestExecutor, gc githubcli.GithubServiceClient, n notify.Notifier, l logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:        store,
		generator:    gen,
		executor:     ex,
		githubClient: gc,
		notifier:     n,
		logger:       l,
	}
}

// Verify runs the full pipeline for an already claimed task. The task row is
// saved after every state change so a crash leaves an accurate trail.
func (o *Orchestrator) Verify(ctx context.Context, repo *model.Repository, task *model.Task, createPR bool) error {
	o.appendLog(ctx, task, model.LogLevelInfo, "verification_started",
		fmt.Sprintf("Verifying %s in %s", task.VulnerabilityType, task.FilePath))

	testCode, err := o.generator.GenerateTest(ctx, task)
	if err != nil {
		task.TestStatus = model.TestStatusError
		return o.failTask(ctx, task, "test_generation_failed", err)
	}
	task.TestCode = testCode
	task.TestStatus = model.TestStatusGenerated
	if err := o.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
	}
	o.appendLog(ctx, task, model.LogLevelInfo, "test_generated", "Proof-of-vulnerability test generated")

	confirmed, err := o.confirmVulnerability(ctx, task)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil // terminal: false positive or test error, already recorded
	}

	if err := o.fixUntilVerified(ctx, task); err != nil {
		return err
	}
	if task.Status != model.TaskStatusCompleted {
		return nil // retries exhausted, already classified false positive
	}

	if createPR {
		o.openPullRequest(ctx, repo, task)
	}
	return o.store.SaveTask(ctx, task)
}

// confirmVulnerability runs the generated test against the ORIGINAL code.
// The test is written to fail while the vulnerability exists, so a failing
// run confirms the finding and a passing run means false positive.
func (o *Orchestrator) confirmVulnerability(ctx context.Context, task *model.Task) (bool, error) {
	result, err := o.executor.RunTest(ctx, task.FilePath, task.OriginalCode, task.TestCode)
	if err != nil {
		task.TestStatus = model.TestStatusError
		return false, o.failTask(ctx, task, "test_execution_failed", err)
	}
	if result.TimedOut {
		task.TestStatus = model.TestStatusError
		return false, o.failTask(ctx, task, "test_execution_failed",
			fmt.Errorf("test run timed out, task_id=%d", task.TaskID))
	}
	if result.Passed {
		task.TestStatus = model.TestStatusPassed
		if err := task.MarkFalsePositive("Test passed against original code, vulnerability not reproducible"); err != nil {
			return false, err
		}
		if err := o.store.SaveTask(ctx, task); err != nil {
			return false, fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
		}
		o.appendLog(ctx, task, model.LogLevelInfo, "false_positive",
			"Test passed on first run, finding marked false positive")
		return false, nil
	}

	task.TestStatus = model.TestStatusFailed
	task.Status = model.TaskStatusValidating
	if err := o.store.SaveTask(ctx, task); err != nil {
		return false, fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
	}
	o.appendLog(ctx, task, model.LogLevelInfo, "vulnerability_confirmed",
		"Test failed against original code, vulnerability confirmed")
	return true, nil
}

// fixUntilVerified generates fixes until the proof test passes or the retry
// budget is spent. Each retry prompt carries the previous attempt's output.
func (o *Orchestrator) fixUntilVerified(ctx context.Context, task *model.Task) error {
	previousFailure := ""
	for attempt := 0; attempt <= MaxFixRetries; attempt++ {
		fixCode, explanation, err := o.generator.GenerateFix(ctx, task, previousFailure)
		if err != nil {
			task.FixStatus = model.FixStatusFailed
			return o.failTask(ctx, task, "fix_generation_failed", err)
		}
		task.FixCode = fixCode
		task.FixExplanation = explanation
		task.FixStatus = model.FixStatusGenerated
		if err := o.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
		}
		o.appendLog(ctx, task, model.LogLevelInfo, "fix_generated",
			fmt.Sprintf("Fix generated (attempt %d)", attempt+1))

		result, err := o.executor.RunTest(ctx, task.FilePath, task.FixCode, task.TestCode)
		if err != nil {
			task.TestStatus = model.TestStatusError
			return o.failTask(ctx, task, "fix_verification_failed", err)
		}
		task.FixStatus = model.FixStatusApplied

		if result.Passed {
			task.FixStatus = model.FixStatusVerified
			task.TestStatus = model.TestStatusPassed
			if err := task.MarkCompleted(time.Now()); err != nil {
				return err
			}
			if err := o.store.SaveTask(ctx, task); err != nil {
				return fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
			}
			o.appendLog(ctx, task, model.LogLevelInfo, "fix_verified",
				fmt.Sprintf("Fix verified on attempt %d", attempt+1))
			return nil
		}

		previousFailure = result.Output
		if result.TimedOut {
			previousFailure = "test run timed out"
		}
		task.FixStatus = model.FixStatusFailed
		task.RetryCount++
		if err := o.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
		}
		o.appendLog(ctx, task, model.LogLevelWarning, "fix_rejected",
			fmt.Sprintf("Fix did not pass the test (attempt %d)", attempt+1))
	}

	// A finding whose fix cannot be verified within the retry budget is
	// classified false positive, a terminal outcome rather than an error.
	if err := task.MarkFalsePositive(common.CutString(
		fmt.Sprintf("Fix could not be verified after %d attempts. Last test output: %s", MaxFixRetries+1, previousFailure),
		maxValidationMessageLength)); err != nil {
		return err
	}
	if err := o.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("failed to save task, task_id=%d, err=%w", task.TaskID, err)
	}
	o.appendLog(ctx, task, model.LogLevelWarning, "fix_abandoned", "Retry budget spent, finding classified false positive")
	return nil
}

// openPullRequest pushes the verified fix upstream. Failure here never
// demotes the task: the fix IS verified, only the delivery failed.
func (o *Orchestrator) openPullRequest(ctx context.Context, repo *model.Repository, task *model.Task) {
	branch, err := o.githubClient.CreateFixBranch(ctx, repo, task)
	if err != nil {
		o.recordPRFailure(ctx, task, "branch_creation_failed", err)
		return
	}
	if _, err := o.githubClient.CommitFixAndTest(ctx, repo, task, branch); err != nil {
		o.recordPRFailure(ctx, task, "commit_failed", err)
		return
	}
	pr, err := o.githubClient.OpenPullRequest(ctx, repo, task, branch)
	if err != nil {
		o.recordPRFailure(ctx, task, "pr_creation_failed", err)
		return
	}
	if err := o.store.CreatePullRequest(ctx, &model.PullRequest{
		TaskID:       task.TaskID,
		RepositoryID: repo.RepositoryID,
		PRNumber:     pr.Number,
		PRURL:        pr.URL,
		BranchName:   pr.BranchName,
		Title:        task.Title,
		Description:  task.FixExplanation,
		Status:       model.PRStatusOpen,
	}); err != nil {
		o.logger.Errorf(ctx, "Failed to persist pull request record: task_id=%d, err=%+v", task.TaskID, err)
	}
	task.Status = model.TaskStatusPRCreated
	task.PRURL = pr.URL
	o.appendLog(ctx, task, model.LogLevelInfo, "pr_created",
		fmt.Sprintf("Pull request opened: %s", pr.URL))
}

func (o *Orchestrator) recordPRFailure(ctx context.Context, task *model.Task, action string, err error) {
	o.logger.Warnf(ctx, "Failed to open pull request, fix remains verified: task_id=%d, err=%+v", task.TaskID, err)
	task.ValidationMessage = common.CutString(
		fmt.Sprintf("Fix verified but pull request failed: %v", err), maxValidationMessageLength)
	o.appendLog(ctx, task, model.LogLevelWarning, action, err.Error())
}

// failTask records a terminal pipeline failure and passes the cause through.
// RetryCount is untouched here, it counts fix attempts only.
func (o *Orchestrator) failTask(ctx context.Context, task *model.Task, action string, cause error) error {
	o.logger.Errorf(ctx, "Verification failed: task_id=%d, action=%s, err=%+v", task.TaskID, action, cause)
	task.Status = model.TaskStatusFailed
	task.ValidationMessage = common.CutString(cause.Error(), maxValidationMessageLength)
	if err := o.store.SaveTask(ctx, task); err != nil {
		o.logger.Errorf(ctx, "Failed to save failed task: task_id=%d, err=%+v", task.TaskID, err)
	}
	o.appendLog(ctx, task, model.LogLevelError, action, cause.Error())
	return cause
}

func (o *Orchestrator) appendLog(ctx context.Context, task *model.Task, level model.LogLevel, action, message string) {
	if err := o.store.AppendTaskLog(ctx, task.TaskID, level, action, message); err != nil {
		o.logger.Warnf(ctx, "Failed to append task log: task_id=%d, action=%s, err=%+v", task.TaskID, action, err)
	}
	o.notifier.NotifyLog(ctx, &notify.LogEvent{
		TaskID:  task.TaskID,
		Level:   string(level),
		Action:  action,
		Message: message,
	})
}
