// Package triage selects nixpkgs PRs that need a review and requests one
// for each of them exactly once.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/promiseofcake/nixpr/internal/scm"
	"github.com/promiseofcake/nixpr/internal/state"
)

// ErrAllTriggersFailed is returned by Run when reviews were attempted and
// none of them could be requested.
var ErrAllTriggersFailed = errors.New("every review trigger failed")

// Fetcher lists open PRs, newest first.
type Fetcher interface {
	FetchOpenPRs(ctx context.Context, totalLimit int) ([]scm.PullRequest, error)
}

// Store persists the set of PRs already handled.
type Store interface {
	Load() (state.ProcessedSet, error)
	Save(set state.ProcessedSet) error
	Clear() error
}

// Trigger requests a review for a single PR.
type Trigger interface {
	TriggerReview(ctx context.Context, prNumber int) error
}

// Options controls a single run.
type Options struct {
	Limit  int  // Total number of open PRs to fetch
	DryRun bool // Report candidates without triggering or persisting
	Force  bool // Ignore the processed set when selecting candidates
}

// Result is the outcome of triggering a review for one PR.
type Result struct {
	PR      scm.PullRequest
	Package string // Empty when the title has no package name
	Err     error
}

func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Report summarizes a run.
type Report struct {
	Fetched     int
	Matched     int
	Candidates  []Candidate
	Results     []Result
	NothingToDo bool
	DryRun      bool
}

// Candidate is a PR selected for review.
type Candidate struct {
	PR      scm.PullRequest
	Package string
}

// NewPRs returns the number of PRs that passed deduplication.
func (r *Report) NewPRs() int {
	return len(r.Candidates)
}

// Triggered returns the number of reviews requested successfully.
func (r *Report) Triggered() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of reviews that could not be requested.
func (r *Report) Failed() int {
	return len(r.Results) - r.Triggered()
}

// Orchestrator wires the fetch, filter, dedupe, trigger and persist steps.
type Orchestrator struct {
	fetcher Fetcher
	rules   scm.FilterRules
	store   Store
	trigger Trigger
}

func New(fetcher Fetcher, rules scm.FilterRules, store Store, trigger Trigger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		rules:   rules,
		store:   store,
		trigger: trigger,
	}
}

// Run executes one triage pass.
// Fatal errors (state load, fetch, state save) abort the run; a failing
// trigger is recorded in the report and the remaining PRs are still processed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	processed, err := o.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading processed state: %w", err)
	}

	prs, err := o.fetcher.FetchOpenPRs(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pull requests: %w", err)
	}

	report := &Report{Fetched: len(prs), DryRun: opts.DryRun}
	slog.Info("fetched open PRs", "count", report.Fetched)

	matching := o.rules.Filter(prs)
	report.Matched = len(matching)
	slog.Info("PRs match filters", "count", report.Matched)

	for _, pr := range matching {
		if !opts.Force && processed.Contains(pr.Number) {
			slog.Debug("skipping already processed PR", "pr", pr.Number)
			continue
		}
		name, _ := scm.ExtractPackageName(pr.Title)
		report.Candidates = append(report.Candidates, Candidate{PR: pr, Package: name})
	}
	slog.Info("new PRs to review", "count", report.NewPRs())

	if len(report.Candidates) == 0 {
		report.NothingToDo = true
		return report, nil
	}
	if opts.DryRun {
		return report, nil
	}

	for _, c := range report.Candidates {
		err := o.trigger.TriggerReview(ctx, c.PR.Number)
		if err != nil {
			slog.Warn("failed to trigger review", "pr", c.PR.Number, "error", err)
		} else {
			slog.Debug("triggered review", "pr", c.PR.Number)
			processed.Add(c.PR.Number)
		}
		report.Results = append(report.Results, Result{PR: c.PR, Package: c.Package, Err: err})
	}

	if report.Triggered() == 0 {
		return report, fmt.Errorf("triggering reviews: %w", ErrAllTriggersFailed)
	}

	if err := o.store.Save(processed); err != nil {
		return report, fmt.Errorf("saving processed state: %w", err)
	}
	slog.Info("marked PRs as processed", "count", report.Triggered())

	return report, nil
}

// Reset forgets every processed PR.
func Reset(store Store) error {
	if err := store.Clear(); err != nil {
		return fmt.Errorf("clearing processed state: %w", err)
	}
	return nil
}
