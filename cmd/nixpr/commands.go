package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/promiseofcake/nixpr/internal/runner"
	"github.com/promiseofcake/nixpr/internal/scm"
	"github.com/promiseofcake/nixpr/internal/triage"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Fetch open PRs, filter them, and trigger reviews",
		Long: `Fetch open NixOS/nixpkgs pull requests (newest first, paginated
automatically), drop the ones matching the exclusion lists or not touching a
single package, and trigger a review for every PR not processed before.

PRs whose review was triggered are remembered and skipped on the next run
unless --force is given. Running two instances against the same state file
at once is not supported.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show recent workflow runs",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Show logs of the latest workflow run",
		Args:  cobra.NoArgs,
		RunE:  runLogs,
	}

	webCmd = &cobra.Command{
		Use:   "web",
		Short: "Open the GitHub Actions page in a browser",
		Args:  cobra.NoArgs,
		RunE:  runWeb,
	}

	checkCmd = &cobra.Command{
		Use:   "check <pr-number>",
		Short: "Check runs for a specific PR",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clear the list of already processed PRs",
		Args:  cobra.NoArgs,
		RunE:  runReset,
	}
)

func init() {
	runCmd.Flags().IntP("limit", "l", 100, "Total number of PRs to fetch (pagination is automatic)")
	runCmd.Flags().BoolP("dry-run", "d", false, "Show matching PRs without triggering reviews")
	runCmd.Flags().BoolP("force", "f", false, "Force re-review of already processed PRs")

	statusCmd.Flags().IntP("limit", "l", 10, "Number of runs to display")
}

func newRunner() *runner.GHRunner {
	return runner.NewGHRunner(cfg.Review.Repo, cfg.Review.Workflow)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")

	if limit < 1 {
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	}

	store, err := stateStore()
	if err != nil {
		return err
	}

	// Create GitHub client
	c, err := scm.NewGithubClient(http.DefaultClient, cfg.GitHub.Token, cfg.GitHub.Repository)
	if err != nil {
		return err
	}

	r := newRunner()
	o := triage.New(c, cfg.FilterRules(), store, r)

	report, runErr := o.Run(ctx, triage.Options{Limit: limit, DryRun: dryRun, Force: force})
	if report != nil {
		printReport(os.Stdout, report, r.ActionsURL())
	}
	return runErr
}

// printReport writes the human readable summary of a run.
func printReport(w io.Writer, report *triage.Report, actionsURL string) {
	fmt.Fprintf(w, "Fetched %d open PRs total\n", report.Fetched)
	fmt.Fprintf(w, "%d PRs match filters\n", report.Matched)
	fmt.Fprintf(w, "%d new PRs to review\n\n", report.NewPRs())

	if report.NothingToDo {
		fmt.Fprintln(w, "Nothing new to review.")
		return
	}

	for _, c := range report.Candidates {
		pkg := c.Package
		if pkg == "" {
			pkg = "unknown"
		}
		fmt.Fprintf(w, "  #%d [%s] %s (by @%s)\n", c.PR.Number, pkg, c.PR.Title, c.PR.Author)
	}
	fmt.Fprintln(w)

	if report.DryRun {
		fmt.Fprintln(w, "Dry run, no reviews triggered.")
		return
	}

	for _, res := range report.Results {
		if res.Succeeded() {
			fmt.Fprintf(w, "Triggering review for PR #%d... done\n", res.PR.Number)
		} else {
			fmt.Fprintf(w, "Triggering review for PR #%d... FAILED: %v\n", res.PR.Number, res.Err)
		}
	}

	fmt.Fprintf(w, "\nTriggered %d, failed %d\n", report.Triggered(), report.Failed())
	if report.Triggered() > 0 {
		fmt.Fprintf(w, "Marked %d PRs as processed\n", report.Triggered())
		fmt.Fprintf(w, "Follow progress: %s\n", actionsURL)
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return newRunner().ListRuns(cmd.Context(), limit)
}

func runLogs(cmd *cobra.Command, args []string) error {
	return newRunner().ShowLatestLogs(cmd.Context())
}

func runWeb(cmd *cobra.Command, args []string) error {
	return newRunner().OpenWeb(cmd.Context())
}

func runCheck(cmd *cobra.Command, args []string) error {
	prNumber, err := strconv.Atoi(args[0])
	if err != nil || prNumber < 1 {
		return fmt.Errorf("invalid PR number: %s", args[0])
	}

	fmt.Printf("Searching runs for PR #%d...\n", prNumber)

	runs, err := newRunner().RunsForPR(cmd.Context(), prNumber)
	if err != nil {
		return err
	}
	printRuns(os.Stdout, runs, prNumber)
	return nil
}

func printRuns(w io.Writer, runs []runner.WorkflowRun, prNumber int) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs found for PR #%d\n", prNumber)
		return
	}
	for _, run := range runs {
		conclusion := run.Conclusion
		if conclusion == "" {
			conclusion = "running"
		}
		fmt.Fprintf(w, "%s - %s - %s\n", run.CreatedAt, run.Status, conclusion)
	}
}

func runReset(cmd *cobra.Command, args []string) error {
	store, err := stateStore()
	if err != nil {
		return err
	}
	if err := triage.Reset(store); err != nil {
		return err
	}
	fmt.Println("Processed PR list cleared.")
	return nil
}

// exitCode maps run errors to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, triage.ErrAllTriggersFailed):
		return 2
	default:
		return 1
	}
}
