package verify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"k8s.io/utils/exec"

	"github.com/fixit-ai/fixit/pkg/common"
)

// DefaultTestTimeout bounds a single pytest run. Generated tests are small,
// anything slower is treated as hung.
const DefaultTestTimeout = 30 * time.Second

const maxOutputLength = 10000

// TestResult is the outcome of one sandboxed test run.
type TestResult struct {
	Passed   bool
	TimedOut bool
	Output   string
}

// TestExecutor runs a generated test against a candidate version of the
// target file in an isolated temporary directory.
type TestExecutor interface {
	RunTest(ctx context.Context, targetFileName, targetContent, testContent string) (*TestResult, error)
}

type pytestExecutor struct {
	pythonPath string
	timeout    time.Duration
	exec       exec.Interface
	logger     logging.Logger
}

func NewPytestExecutor(pythonPath string, timeout time.Duration, execer exec.Interface, l logging.Logger) TestExecutor {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if timeout == 0 {
		timeout = DefaultTestTimeout
	}
	return &pytestExecutor{
		pythonPath: pythonPath,
		timeout:    timeout,
		exec:       execer,
		logger:     l,
	}
}

// RunTest copies the target file and its test into a fresh temp dir and runs
// pytest there. The directory is removed unconditionally, pass or fail.
func (e *pytestExecutor) RunTest(ctx context.Context, targetFileName, targetContent, testContent string) (*TestResult, error) {
	dir, err := os.MkdirTemp("", "fixit-verify-")
	if err != nil {
		return nil, fmt.Errorf("failed to create test sandbox: %w", err)
	}
	defer os.RemoveAll(dir)

	targetName := filepath.Base(targetFileName)
	testName := "test_" + targetName
	if err := os.WriteFile(filepath.Join(dir, targetName), []byte(targetContent), 0600); err != nil {
		return nil, fmt.Errorf("failed to write target file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, testName), []byte(testContent), 0600); err != nil {
		return nil, fmt.Errorf("failed to write test file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := e.exec.CommandContext(ctx, e.pythonPath, "-m", "pytest", testName, "-v")
	cmd.SetDir(dir)
	out, err := cmd.CombinedOutput()
	result := &TestResult{
		Output: common.SanitizeMessage(string(out), maxOutputLength),
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			e.logger.Warnf(ctx, "Test run timed out: test=%s, timeout=%s", testName, e.timeout)
			result.TimedOut = true
			return result, nil
		}
		var exitErr exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit means the test ran and failed.
			return result, nil
		}
		return nil, fmt.Errorf("failed to execute pytest: %w", err)
	}
	result.Passed = true
	return result, nil
}
