package scm

import "fmt"

// PullRequest contains information about an open pull request
type PullRequest struct {
	Number int
	Title  string
	Author string // Login of the PR author
	URL    string
}

// FetchError is returned when a page of the open PR listing cannot be retrieved
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page %d of open PRs: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
