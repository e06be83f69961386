// Package github syncs pull requests across a user's repositories via
// the GitHub REST API, grounded on the framework's call_with_backoff
// helper and indexing helpers in pkg/provider.
package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/httpx"
	"github.com/minnahq/minna/pkg/store"
)

const baseURL = "https://api.github.com"

// Provider implements provider.SyncProvider for GitHub.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string        { return "github" }
func (p *Provider) DisplayName() string { return "GitHub" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	token, err := sc.Secrets.Get(sc.Context, "github_token")
	if err != nil {
		return nil, err
	}
	var user map[string]any
	if err := p.get(sc, token, baseURL+"/user", &user); err != nil {
		return nil, err
	}
	return user, nil
}

type repo struct {
	FullName string `json:"full_name"`
}

type issue struct {
	Number             int       `json:"number"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	HTMLURL            string    `json:"html_url"`
	UpdatedAt          time.Time `json:"updated_at"`
	User               ghUser    `json:"user"`
	Assignees          []ghUser  `json:"assignees"`
	PullRequest        *struct{} `json:"pull_request"`
	RequestedReviewers []ghUser  `json:"requested_reviewers"`
}

type ghUser struct {
	Login string `json:"login"`
}

func repoCap() int {
	if v := os.Getenv("MINNA_GITHUB_REPO_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 50
}

func issueCap() int {
	if v := os.Getenv("MINNA_GITHUB_ISSUE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 200
}

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	token, err := sc.Secrets.Get(sc.Context, "github_token")
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, p.Name())
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	repos, err := p.listRepos(sc, token)
	if err != nil {
		return summary, fmt.Errorf("listing repos: %w", err)
	}
	if len(repos) > repoCap() {
		repos = repos[:repoCap()]
	}

	for _, r := range repos {
		issues, err := p.listIssuesSince(sc, token, r.FullName, since)
		if err != nil {
			return summary, fmt.Errorf("listing issues for %s: %w", r.FullName, err)
		}
		for i, iss := range issues {
			if i >= issueCap() {
				break
			}
			summary.ItemsScanned++
			if iss.PullRequest == nil {
				continue // not a PR
			}
			if err := p.indexPR(sc, r.FullName, iss); err != nil {
				return summary, fmt.Errorf("indexing %s#%d: %w", r.FullName, iss.Number, err)
			}
			summary.DocumentsProcessed++
		}
	}

	if err := provider.SetSyncCursor(sc, p.Name(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return summary, fmt.Errorf("advancing cursor: %w", err)
	}
	return summary, nil
}

func (p *Provider) listRepos(sc provider.SyncContext, token string) ([]repo, error) {
	var all []repo
	for page := 1; ; page++ {
		var batch []repo
		url := fmt.Sprintf("%s/user/repos?per_page=100&page=%d", baseURL, page)
		if err := p.get(sc, token, url, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
	}
	return all, nil
}

func (p *Provider) listIssuesSince(sc provider.SyncContext, token, fullName string, since time.Time) ([]issue, error) {
	var all []issue
	for page := 1; ; page++ {
		var batch []issue
		url := fmt.Sprintf("%s/repos/%s/issues?state=all&since=%s&per_page=100&page=%d",
			baseURL, fullName, since.UTC().Format(time.RFC3339), page)
		if err := p.get(sc, token, url, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
	}
	return all, nil
}

func (p *Provider) indexPR(sc provider.SyncContext, fullName string, iss issue) error {
	if err := provider.IndexDocument(sc, provider.Document{
		URI:    iss.HTMLURL,
		Source: "github",
		Title:  fmt.Sprintf("%s#%d: %s", fullName, iss.Number, iss.Title),
		Body:   iss.Body,
	}); err != nil {
		return err
	}

	repoNode := store.NodeRef{NodeType: "project", Provider: "github", ExternalID: fullName, DisplayName: strPtr(fullName)}
	prNode := store.NodeRef{NodeType: "pr", Provider: "github", ExternalID: strconv.Itoa(iss.Number), DisplayName: strPtr(iss.Title)}

	edges := []provider.Edge{
		{From: prNode, To: repoNode, Relation: "BelongsTo", ObservedAt: iss.UpdatedAt},
	}
	if iss.User.Login != "" {
		author := store.NodeRef{NodeType: "user", Provider: "github", ExternalID: iss.User.Login, DisplayName: strPtr(iss.User.Login)}
		edges = append(edges, provider.Edge{From: author, To: prNode, Relation: "AuthorOf", ObservedAt: iss.UpdatedAt})
	}
	for _, a := range iss.Assignees {
		assignee := store.NodeRef{NodeType: "user", Provider: "github", ExternalID: a.Login, DisplayName: strPtr(a.Login)}
		edges = append(edges, provider.Edge{From: assignee, To: prNode, Relation: "AssignedTo", ObservedAt: iss.UpdatedAt})
	}
	for _, rr := range iss.RequestedReviewers {
		reviewer := store.NodeRef{NodeType: "user", Provider: "github", ExternalID: rr.Login, DisplayName: strPtr(rr.Login)}
		edges = append(edges, provider.Edge{From: reviewer, To: prNode, Relation: "ReviewerOf", ObservedAt: iss.UpdatedAt})
	}
	return provider.IndexEdges(sc, edges)
}

func strPtr(s string) *string { return &s }

func (p *Provider) get(sc provider.SyncContext, token, url string, out any) error {
	resp, err := httpx.CallWithBackoff(sc.HTTP, sc.Log, "github", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(sc.Context, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.github+json")
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("github GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
