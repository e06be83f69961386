package atlassian

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/minnahq/minna/pkg/provider"
)

const jiraCursorKey = "atlassian:jira"

type jiraSearchResponse struct {
	Issues []jiraIssue `json:"issues"`
	Total  int         `json:"total"`
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Updated     string          `json:"updated"`
	} `json:"fields"`
}

func (p *Provider) syncJira(sc provider.SyncContext, creds credentials, cloudID string, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name()}

	cursor, err := provider.GetSyncCursor(sc, jiraCursorKey)
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)
	jql := fmt.Sprintf("updated >= '%s' ORDER BY updated DESC", since.Format("2006-01-02"))

	var maxUpdated time.Time
	startAt := 0
	for {
		url := fmt.Sprintf("%s/ex/jira/%s/rest/api/3/search?jql=%s&startAt=%d&maxResults=100",
			apiBase, cloudID, jqlEscape(jql), startAt)
		var resp jiraSearchResponse
		if err := p.get(sc, creds, url, &resp); err != nil {
			return summary, err
		}
		summary.APICalls++

		for _, iss := range resp.Issues {
			summary.ItemsScanned++
			if err := p.indexJiraIssue(sc, cloudID, iss); err != nil {
				return summary, fmt.Errorf("indexing %s: %w", iss.Key, err)
			}
			summary.DocumentsProcessed++
			if updated, perr := time.Parse("2006-01-02T15:04:05.000-0700", iss.Fields.Updated); perr == nil && updated.After(maxUpdated) {
				maxUpdated = updated
			}
		}

		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			break
		}
	}

	if !maxUpdated.IsZero() {
		if err := provider.SetSyncCursor(sc, jiraCursorKey, maxUpdated.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing jira cursor: %w", err)
		}
	}
	return summary, nil
}

func (p *Provider) indexJiraIssue(sc provider.SyncContext, cloudID string, iss jiraIssue) error {
	body := adfToText(iss.Fields.Description)
	uri := fmt.Sprintf("https://%s.atlassian.net/browse/%s", cloudID, iss.Key)
	return provider.IndexDocument(sc, provider.Document{
		URI:    uri,
		Source: "jira",
		Title:  fmt.Sprintf("%s: %s", iss.Key, iss.Fields.Summary),
		Body:   body,
	})
}

func jqlEscape(s string) string {
	return strings.ReplaceAll(s, " ", "%20")
}

// adfNode is a minimal Atlassian Document Format node.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// adfToText walks an Atlassian Document Format tree and renders it as
// plain text, preserving block structure with newlines and simple
// list/quote/code prefixes.
func adfToText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var root adfNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}
	var sb strings.Builder
	renderADFNode(&sb, root, 0)
	return strings.TrimSpace(sb.String())
}

func renderADFNode(sb *strings.Builder, n adfNode, depth int) {
	switch n.Type {
	case "text":
		sb.WriteString(n.Text)
	case "paragraph", "heading":
		for _, c := range n.Content {
			renderADFNode(sb, c, depth)
		}
		sb.WriteString("\n")
	case "bulletList", "orderedList":
		for i, item := range n.Content {
			prefix := "- "
			if n.Type == "orderedList" {
				prefix = fmt.Sprintf("%d. ", i+1)
			}
			sb.WriteString(prefix)
			for _, c := range item.Content {
				renderADFNode(sb, c, depth+1)
			}
		}
	case "codeBlock":
		sb.WriteString("```\n")
		for _, c := range n.Content {
			renderADFNode(sb, c, depth)
		}
		sb.WriteString("\n```\n")
	case "blockquote":
		sb.WriteString("> ")
		for _, c := range n.Content {
			renderADFNode(sb, c, depth)
		}
	default:
		for _, c := range n.Content {
			renderADFNode(sb, c, depth)
		}
	}
}
