// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/naka-gawa/github-pr-stats/internal/domain"
)

// MaxPerPage is the largest page size the GitHub REST API accepts.
const MaxPerPage = 100

// Page is one page of pull requests together with its pagination metadata.
type Page struct {
	Number       int
	PullRequests []domain.PullRequest
	// LastPage is the index of the final page taken from the Link header, or 0 when the
	// header carries no rel="last" link (single page, or this is the last page).
	LastPage int
	NextPage int
	// Skipped counts records dropped because they failed validation.
	Skipped int
}

// PageFetcher defines the behavior of a gateway that fetches one page of pull requests.
type PageFetcher interface {
	FetchPage(ctx context.Context, repo domain.Repository, state string, page, perPage int) (*Page, error)
}

// Counter defines the behavior of a gateway that reports the exact number of pull requests.
type Counter interface {
	CountPullRequests(ctx context.Context, repo domain.Repository, state string) (int, error)
}

// TransportError is returned when a request to GitHub fails.
type TransportError struct {
	// Page is the page number requested, or 0 for requests that are not page-based.
	Page       int
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	target := "count query"
	if e.Page > 0 {
		target = fmt.Sprintf("page %d", e.Page)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s (status %d): %v", target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: %v", target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options tunes the HTTP side of the gateway.
type Options struct {
	// BaseURL points the clients at a GitHub Enterprise Server API root, e.g. https://ghe.example.com/api/v3/.
	BaseURL string
	// Timeout bounds a single HTTP request. Zero means no timeout.
	Timeout time.Duration
}

// GitHubGateway is the concrete implementation of PageFetcher and Counter.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        zerolog.Logger
}

// countQuery fetches the total number of pull requests in the given states.
type countQuery struct {
	Repository struct {
		PullRequests struct {
			TotalCount int
		} `graphql:"pullRequests(states: $states)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(token string, opts Options, logger zerolog.Logger) (*GitHubGateway, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   http.DefaultTransport,
			Source: ts,
		},
		Timeout: opts.Timeout,
	}

	restClient := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		restClient, err = restClient.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URL: %w", err)
		}
		graphqlClient = githubv4.NewEnterpriseClient(graphqlEndpoint(opts.BaseURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		logger:        logger.With().Str("component", "gateway").Logger(),
	}, nil
}

// graphqlEndpoint derives the GraphQL endpoint from an Enterprise REST root (".../api/v3" -> ".../api/graphql").
func graphqlEndpoint(baseURL string) string {
	base := strings.TrimSuffix(baseURL, "/")
	base = strings.TrimSuffix(base, "/v3")
	return base + "/graphql"
}

// FetchPage fetches a single page of the repository's pull request list.
func (g *GitHubGateway) FetchPage(ctx context.Context, repo domain.Repository, state string, page, perPage int) (*Page, error) {
	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}
	prs, resp, err := g.restClient.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, newTransportError(page, resp, err)
	}

	result := &Page{
		Number:       page,
		PullRequests: make([]domain.PullRequest, 0, len(prs)),
		LastPage:     resp.LastPage,
		NextPage:     resp.NextPage,
	}
	for _, pr := range prs {
		record := toDomain(pr)
		if err := record.Validate(); err != nil {
			g.logger.Warn().Err(err).Int("page", page).Msg("Skipping pull request")
			result.Skipped++
			continue
		}
		result.PullRequests = append(result.PullRequests, record)
	}

	g.logger.Debug().
		Str("repository", repo.String()).
		Int("page", page).
		Int("records", len(result.PullRequests)).
		Int("last_page", result.LastPage).
		Msg("Fetched page")
	return result, nil
}

// CountPullRequests returns the exact number of pull requests matching the REST state filter.
func (g *GitHubGateway) CountPullRequests(ctx context.Context, repo domain.Repository, state string) (int, error) {
	variables := map[string]interface{}{
		"owner":  githubv4.String(repo.Owner),
		"name":   githubv4.String(repo.Name),
		"states": graphqlStates(state),
	}
	var q countQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return 0, &TransportError{Err: fmt.Errorf("failed to execute GraphQL count query: %w", err)}
	}
	return q.Repository.PullRequests.TotalCount, nil
}

// graphqlStates maps a REST state filter onto GraphQL pull request states.
// REST "closed" covers merged pull requests as well.
func graphqlStates(state string) []githubv4.PullRequestState {
	switch state {
	case "open":
		return []githubv4.PullRequestState{githubv4.PullRequestStateOpen}
	case "closed":
		return []githubv4.PullRequestState{githubv4.PullRequestStateClosed, githubv4.PullRequestStateMerged}
	default:
		return []githubv4.PullRequestState{githubv4.PullRequestStateOpen, githubv4.PullRequestStateClosed, githubv4.PullRequestStateMerged}
	}
}

func newTransportError(page int, resp *github.Response, err error) *TransportError {
	te := &TransportError{Page: page, Err: err}
	if resp != nil && resp.Response != nil {
		te.StatusCode = resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if te.StatusCode == 0 && errors.As(err, &ghErr) && ghErr.Response != nil {
		te.StatusCode = ghErr.Response.StatusCode
	}
	return te
}

func toDomain(pr *github.PullRequest) domain.PullRequest {
	author := pr.GetUser().GetLogin()
	if author == "" {
		author = domain.GhostAuthor
	}

	state := domain.State(pr.GetState())
	if pr.MergedAt != nil {
		state = domain.StateMerged
	}

	return domain.PullRequest{
		ID:           pr.GetID(),
		Number:       pr.GetNumber(),
		State:        state,
		CreatedAt:    pr.GetCreatedAt().Time,
		ClosedAt:     timePtr(pr.ClosedAt),
		MergedAt:     timePtr(pr.MergedAt),
		URL:          pr.GetHTMLURL(),
		Comments:     pr.GetComments(),
		Additions:    pr.GetAdditions(),
		ChangedFiles: pr.GetChangedFiles(),
		Author:       author,
	}
}

func timePtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
