package scm

import "strings"

const (
	// r-ryantm is the bot that opens automated nixpkgs version updates
	defaultExcludedAuthor = "r-ryantm"
)

// FilterRules contains the exclusion lists applied to open PRs
type FilterRules struct {
	ExcludedAuthors  []string // Author logins to skip, case insensitive
	ExcludedPrefixes []string // Title prefixes to skip, case insensitive (e.g. "treewide")
}

// DefaultFilterRules returns the rules used when no configuration overrides them
func DefaultFilterRules() FilterRules {
	return FilterRules{
		ExcludedAuthors:  []string{defaultExcludedAuthor},
		ExcludedPrefixes: []string{"nixos/", "treewide"},
	}
}

// IsExcluded checks if the PR author or title prefix is in the exclusion lists
func (r FilterRules) IsExcluded(pr PullRequest) bool {
	for _, author := range r.ExcludedAuthors {
		if strings.EqualFold(pr.Author, author) {
			return true
		}
	}

	title := strings.ToLower(pr.Title)
	for _, prefix := range r.ExcludedPrefixes {
		if strings.HasPrefix(title, strings.ToLower(prefix)) {
			return true
		}
	}

	return false
}

// Filter keeps the PRs that are not excluded and look like package changes.
// Source order is preserved.
func (r FilterRules) Filter(prs []PullRequest) []PullRequest {
	var matching []PullRequest
	for _, pr := range prs {
		if r.IsExcluded(pr) {
			continue
		}
		if !IsPackagePR(pr.Title) {
			continue
		}
		matching = append(matching, pr)
	}
	return matching
}
