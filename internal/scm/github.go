package scm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/google/go-github/v72/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultRepository is the repository whose open PRs are triaged
	DefaultRepository = "NixOS/nixpkgs"

	pageSize = 100
)

type githubClient struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGithubClient creates a client listing PRs of repository ("owner/name").
// Requests go through the go-github-ratelimit middleware; when token is
// non-empty they are also authenticated for the higher rate limit.
func NewGithubClient(client *http.Client, token, repository string) (*githubClient, error) {
	owner, repo, err := SplitRepository(repository)
	if err != nil {
		return nil, err
	}

	var base http.RoundTripper
	if client != nil {
		base = client.Transport
	}
	httpClient := github_ratelimit.NewClient(base)

	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	return &githubClient{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}, nil
}

// SplitRepository splits "owner/repo" into its parts
func SplitRepository(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository format: %q (expected owner/repo)", repository)
	}
	return owner, repo, nil
}

// FetchOpenPRs returns up to totalLimit open PRs, newest first.
// Pages are requested one after another until the source is exhausted or
// enough PRs have been collected. A failing page aborts the whole fetch.
func (g *githubClient) FetchOpenPRs(ctx context.Context, totalLimit int) ([]PullRequest, error) {
	return paginate(ctx, totalLimit, pageSize, g.listPage)
}

func (g *githubClient) listPage(ctx context.Context, page, perPage int) ([]PullRequest, error) {
	pulls, _, err := g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
		State:     "open",
		Sort:      "created",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	})
	if err != nil {
		return nil, err
	}

	prs := make([]PullRequest, 0, len(pulls))
	for _, p := range pulls {
		prs = append(prs, PullRequest{
			Number: p.GetNumber(),
			Title:  p.GetTitle(),
			Author: p.GetUser().GetLogin(),
			URL:    p.GetHTMLURL(),
		})
	}
	return prs, nil
}

type pageFunc func(ctx context.Context, page, perPage int) ([]PullRequest, error)

func paginate(ctx context.Context, totalLimit, perPage int, fetch pageFunc) ([]PullRequest, error) {
	if totalLimit <= 0 {
		return nil, nil
	}

	pages := (totalLimit + perPage - 1) / perPage
	var all []PullRequest

	for page := 1; ; page++ {
		slog.Info("fetching PRs", "page", page, "pages", pages)

		prs, err := fetch(ctx, page, perPage)
		if err != nil {
			return nil, &FetchError{Page: page, Err: err}
		}

		all = append(all, prs...)
		if len(prs) < perPage || len(all) >= totalLimit {
			break
		}
	}

	if len(all) > totalLimit {
		all = all[:totalLimit]
	}
	return all, nil
}
