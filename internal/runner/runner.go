package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cli/browser"
)

// Runner drives the GitHub Actions workflow that performs reviews.
// Each method maps to one user-facing action.
type Runner interface {
	// TriggerReview dispatches the review workflow for a nixpkgs PR.
	TriggerReview(ctx context.Context, prNumber int) error

	// ListRuns prints the most recent workflow runs.
	ListRuns(ctx context.Context, limit int) error

	// ShowLatestLogs prints the logs of the most recent workflow run.
	ShowLatestLogs(ctx context.Context) error

	// OpenWeb opens the Actions page of the review repository in a browser.
	OpenWeb(ctx context.Context) error

	// RunsForPR returns the workflow runs whose display title mentions the PR.
	RunsForPR(ctx context.Context, prNumber int) ([]WorkflowRun, error)
}

// WorkflowRun is one entry of `gh run list --json`.
type WorkflowRun struct {
	DisplayTitle string `json:"displayTitle"`
	Status       string `json:"status"`
	Conclusion   string `json:"conclusion"`
	CreatedAt    string `json:"createdAt"`
}

// Commander runs external commands.
type Commander interface {
	// Run executes name with args, streaming its output to stdout and stderr.
	Run(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error
	// Output executes name with args and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// TriggerError is returned when a review could not be requested for a PR.
// A missing gh binary and a failing invocation are reported the same way.
type TriggerError struct {
	PRNumber int
	Err      error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("triggering review for PR #%d: %v", e.PRNumber, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

// CollaboratorError is returned when a status, logs, web or check action fails.
type CollaboratorError struct {
	Action string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// ErrNoRuns is returned by ShowLatestLogs when the workflow never ran.
var ErrNoRuns = errors.New("no workflow runs found")

// GHRunner implements Runner on top of the gh CLI.
type GHRunner struct {
	Repo     string // owner/name of the repository hosting the workflow
	Workflow string // workflow file name, e.g. review.yml
	Stdout   io.Writer
	Stderr   io.Writer

	cmd         Commander
	openBrowser func(url string) error
}

// NewGHRunner returns a runner invoking gh for repo's workflow.
func NewGHRunner(repo, workflow string) *GHRunner {
	return &GHRunner{
		Repo:        repo,
		Workflow:    workflow,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		cmd:         execCommander{},
		openBrowser: browser.OpenURL,
	}
}

// ActionsURL returns the Actions page of the review repository.
func (r *GHRunner) ActionsURL() string {
	return fmt.Sprintf("https://github.com/%s/actions", r.Repo)
}

func (r *GHRunner) TriggerReview(ctx context.Context, prNumber int) error {
	slog.Debug("dispatching review workflow", "repo", r.Repo, "workflow", r.Workflow, "pr", prNumber)

	err := r.cmd.Run(ctx, r.Stdout, r.Stderr, "gh",
		"workflow", "run", r.Workflow,
		"--repo", r.Repo,
		"--field", fmt.Sprintf("pr=%d", prNumber),
	)
	if err != nil {
		return &TriggerError{PRNumber: prNumber, Err: describe(err)}
	}
	return nil
}

func (r *GHRunner) ListRuns(ctx context.Context, limit int) error {
	err := r.cmd.Run(ctx, r.Stdout, r.Stderr, "gh",
		"run", "list",
		"--repo", r.Repo,
		"--limit", strconv.Itoa(limit),
	)
	if err != nil {
		return &CollaboratorError{Action: "listing workflow runs", Err: describe(err)}
	}
	return nil
}

func (r *GHRunner) ShowLatestLogs(ctx context.Context) error {
	out, err := r.cmd.Output(ctx, "gh",
		"run", "list",
		"--repo", r.Repo,
		"--limit", "1",
		"--json", "databaseId",
		"--jq", ".[0].databaseId",
	)
	if err != nil {
		return &CollaboratorError{Action: "finding latest workflow run", Err: describe(err)}
	}

	runID := strings.TrimSpace(string(out))
	if runID == "" || runID == "null" {
		return &CollaboratorError{Action: "finding latest workflow run", Err: ErrNoRuns}
	}

	fmt.Fprintf(r.Stdout, "Logs for run #%s:\n", runID)
	err = r.cmd.Run(ctx, r.Stdout, r.Stderr, "gh",
		"run", "view", runID,
		"--repo", r.Repo,
		"--log",
	)
	if err != nil {
		return &CollaboratorError{Action: "viewing run logs", Err: describe(err)}
	}
	return nil
}

func (r *GHRunner) OpenWeb(_ context.Context) error {
	url := r.ActionsURL()
	if err := r.openBrowser(url); err != nil {
		return &CollaboratorError{Action: "opening " + url, Err: err}
	}
	return nil
}

func (r *GHRunner) RunsForPR(ctx context.Context, prNumber int) ([]WorkflowRun, error) {
	out, err := r.cmd.Output(ctx, "gh",
		"run", "list",
		"--repo", r.Repo,
		"--json", "displayTitle,status,conclusion,createdAt",
	)
	if err != nil {
		return nil, &CollaboratorError{Action: fmt.Sprintf("listing runs for PR #%d", prNumber), Err: describe(err)}
	}

	var runs []WorkflowRun
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, &CollaboratorError{Action: "parsing workflow runs", Err: err}
	}
	return FilterRunsForPR(runs, prNumber), nil
}

// FilterRunsForPR keeps the runs whose display title contains "#<prNumber>".
func FilterRunsForPR(runs []WorkflowRun, prNumber int) []WorkflowRun {
	needle := fmt.Sprintf("#%d", prNumber)
	var matching []WorkflowRun
	for _, run := range runs {
		if strings.Contains(run.DisplayTitle, needle) {
			matching = append(matching, run)
		}
	}
	return matching
}

// describe adds a hint when gh is not installed.
func describe(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("gh CLI not found, is it installed? %w", err)
	}
	return err
}

type execCommander struct{}

func (execCommander) Run(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args[:min(2, len(args))], " "), err)
	}
	return nil
}

func (execCommander) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args[:min(2, len(args))], " "), err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args[:min(2, len(args))], " "), err)
	}
	return out, nil
}
