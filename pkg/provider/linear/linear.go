// Package linear syncs issues via a single paginated GraphQL query,
// grounded on the framework's call_with_backoff helper and indexing
// helpers in pkg/provider.
package linear

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/httpx"
	"github.com/minnahq/minna/pkg/store"
)

const endpoint = "https://api.linear.app/graphql"

// Provider implements provider.SyncProvider for Linear.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string        { return "linear" }
func (p *Provider) DisplayName() string { return "Linear" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	token, err := sc.Secrets.Get(sc.Context, "linear_token")
	if err != nil {
		return nil, err
	}
	var resp graphQLResponse
	if err := p.query(sc, token, viewerQuery, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

const issuesQuery = `
query Issues($since: DateTimeOrDuration!, $after: String) {
  issues(filter: { updatedAt: { gte: $since } }, after: $after, first: 100) {
    nodes {
      id identifier title description updatedAt url
      state { name }
      assignee { name email }
      creator { name email }
      project { id name }
      team { id name }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const viewerQuery = `query Viewer { viewer { id name email } }`

type linearIssue struct {
	ID          string    `json:"id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
	URL         string    `json:"url"`
	State       struct {
		Name string `json:"name"`
	} `json:"state"`
	Assignee *linearUser    `json:"assignee"`
	Creator  *linearUser    `json:"creator"`
	Project  *linearProject `json:"project"`
	Team     *linearProject `json:"team"`
}

type linearUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type linearProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type graphQLResponse struct {
	Data struct {
		Issues struct {
			Nodes    []linearIssue `json:"nodes"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"issues"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	token, err := sc.Secrets.Get(sc.Context, "linear_token")
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, p.Name())
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	var after string
	var maxUpdated time.Time
	for {
		var resp graphQLResponse
		vars := map[string]any{"since": since.UTC().Format(time.RFC3339)}
		if after != "" {
			vars["after"] = after
		}
		if err := p.query(sc, token, issuesQuery, vars, &resp); err != nil {
			return summary, err
		}
		if len(resp.Errors) > 0 {
			return summary, fmt.Errorf("linear graphql error: %s", resp.Errors[0].Message)
		}

		for _, iss := range resp.Data.Issues.Nodes {
			summary.ItemsScanned++
			if err := p.indexIssue(sc, iss); err != nil {
				return summary, fmt.Errorf("indexing %s: %w", iss.Identifier, err)
			}
			summary.DocumentsProcessed++
			if iss.UpdatedAt.After(maxUpdated) {
				maxUpdated = iss.UpdatedAt
			}
		}

		if !resp.Data.Issues.PageInfo.HasNextPage {
			break
		}
		after = resp.Data.Issues.PageInfo.EndCursor
	}

	if !maxUpdated.IsZero() {
		if err := provider.SetSyncCursor(sc, p.Name(), maxUpdated.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing cursor: %w", err)
		}
	}
	return summary, nil
}

func (p *Provider) indexIssue(sc provider.SyncContext, iss linearIssue) error {
	body := fmt.Sprintf("**Status**: %s\n\n%s", iss.State.Name, iss.Description)
	if err := provider.IndexDocument(sc, provider.Document{
		URI:    "linear://issue/" + iss.Identifier,
		Source: "linear",
		Title:  fmt.Sprintf("%s: %s", iss.Identifier, iss.Title),
		Body:   body,
	}); err != nil {
		return err
	}

	issueNode := store.NodeRef{NodeType: "issue", Provider: "linear", ExternalID: iss.Identifier, DisplayName: strPtr(iss.Title)}
	var edges []provider.Edge

	if iss.Assignee != nil {
		edges = append(edges, provider.Edge{
			From: userNode(*iss.Assignee), To: issueNode, Relation: "AssignedTo", ObservedAt: iss.UpdatedAt,
		})
	}
	if iss.Creator != nil {
		edges = append(edges, provider.Edge{
			From: userNode(*iss.Creator), To: issueNode, Relation: "AuthorOf", ObservedAt: iss.UpdatedAt,
		})
	}
	if iss.Project != nil {
		edges = append(edges, provider.Edge{
			From: issueNode,
			To:   store.NodeRef{NodeType: "project", Provider: "linear", ExternalID: iss.Project.ID, DisplayName: strPtr(iss.Project.Name)},
			Relation: "BelongsTo", ObservedAt: iss.UpdatedAt,
		})
	}
	if iss.Team != nil {
		edges = append(edges, provider.Edge{
			From: issueNode,
			To:   store.NodeRef{NodeType: "project", Provider: "linear", ExternalID: "team:" + iss.Team.ID, DisplayName: strPtr(iss.Team.Name)},
			Relation: "BelongsTo", ObservedAt: iss.UpdatedAt,
		})
	}
	return provider.IndexEdges(sc, edges)
}

func userNode(u linearUser) store.NodeRef {
	id := u.Email
	if id == "" {
		id = u.Name
	}
	return store.NodeRef{NodeType: "user", Provider: "linear", ExternalID: id, DisplayName: strPtr(u.Name)}
}

func strPtr(s string) *string { return &s }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (p *Provider) query(sc provider.SyncContext, token, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshaling graphql request: %w", err)
	}

	resp, err := httpx.CallWithBackoff(sc.HTTP, sc.Log, "linear", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(sc.Context, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("linear graphql call: %w", err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
