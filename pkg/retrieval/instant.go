package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/minnahq/minna/pkg/provider/httpx"
)

// SecretResolver is the subset of pkg/provider.SecretResolver instant
// recall needs to fetch a single item directly from its provider API.
type SecretResolver interface {
	Get(ctx context.Context, key string) (string, error)
}

// InstantRecall implements spec §4.5.1: a query matching a supported
// inline URL is fetched directly, bypassing the search path entirely.
type InstantRecall struct {
	http    *http.Client
	secrets SecretResolver
	log     hclog.Logger
}

func NewInstantRecall(client *http.Client, secrets SecretResolver, log hclog.Logger) *InstantRecall {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &InstantRecall{http: client, secrets: secrets, log: log}
}

var (
	githubPRPattern    = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)
	slackThreadPattern = regexp.MustCompile(`slack\.com/archives/([^/]+)/p(\d+)`)
	linearIssuePattern = regexp.MustCompile(`linear\.app/([^/]+)/issue/([A-Za-z0-9\-]+)`)
)

// Resolve scans query for a supported inline URL and fetches it
// directly. ok is false if no pattern matched, in which case the
// caller should fall through to hybrid search.
func (ir *InstantRecall) Resolve(ctx context.Context, query string) (Item, bool, error) {
	if m := githubPRPattern.FindStringSubmatch(query); m != nil {
		item, err := ir.fetchGitHubPR(ctx, m[1], m[2], m[3])
		return item, true, err
	}
	if m := slackThreadPattern.FindStringSubmatch(query); m != nil {
		item, err := ir.fetchSlackThread(ctx, m[1], m[2])
		return item, true, err
	}
	if m := linearIssuePattern.FindStringSubmatch(query); m != nil {
		item, err := ir.fetchLinearIssue(ctx, m[2])
		return item, true, err
	}
	return Item{}, false, nil
}

func (ir *InstantRecall) fetchGitHubPR(ctx context.Context, owner, repo, number string) (Item, error) {
	token, err := ir.secrets.Get(ctx, "github_token")
	if err != nil {
		return Item{}, err
	}
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/pulls/%s", owner, repo, number)

	var pr struct {
		Title   string `json:"title"`
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
	}
	if err := ir.getJSON(ctx, "github", url, "Bearer "+token, &pr); err != nil {
		return Item{}, err
	}
	return Item{
		URI:     pr.HTMLURL,
		Source:  "github",
		Title:   pr.Title,
		Score:   1.0,
		Snippet: truncateRunes(pr.Body, snippetLen),
		Content: renderMarkdown(pr.Title, pr.Body),
	}, nil
}

func (ir *InstantRecall) fetchSlackThread(ctx context.Context, channel, tsDigits string) (Item, error) {
	token, err := ir.secrets.Get(ctx, "slack_token")
	if err != nil {
		return Item{}, err
	}
	ts := tsDigits
	if len(ts) > 6 {
		ts = ts[:len(ts)-6] + "." + ts[len(ts)-6:]
	}
	url := fmt.Sprintf("https://slack.com/api/conversations.replies?channel=%s&ts=%s", channel, ts)

	var resp struct {
		OK       bool `json:"ok"`
		Messages []struct {
			Text string `json:"text"`
			User string `json:"user"`
		} `json:"messages"`
	}
	if err := ir.getJSON(ctx, "slack", url, "Bearer "+token, &resp); err != nil {
		return Item{}, err
	}

	var body strings.Builder
	for _, m := range resp.Messages {
		body.WriteString(m.Text)
		body.WriteString("\n")
	}
	title := fmt.Sprintf("Slack thread in #%s", channel)
	return Item{
		URI:     fmt.Sprintf("slack://%s/%s", channel, ts),
		Source:  "slack",
		Title:   title,
		Score:   1.0,
		Snippet: truncateRunes(body.String(), snippetLen),
		Content: renderMarkdown(title, body.String()),
	}, nil
}

func (ir *InstantRecall) fetchLinearIssue(ctx context.Context, key string) (Item, error) {
	token, err := ir.secrets.Get(ctx, "linear_token")
	if err != nil {
		return Item{}, err
	}

	gqlBody := fmt.Sprintf(`{"query":"query { issue(id: \"%s\") { identifier title description url } }"}`, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.linear.app/graphql", strings.NewReader(gqlBody))
	if err != nil {
		return Item{}, err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.CallWithBackoff(ir.http, ir.log, "linear", func() (*http.Request, error) { return req, nil }, nil)
	if err != nil {
		return Item{}, fmt.Errorf("instant recall linear fetch: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Data struct {
			Issue struct {
				Identifier string `json:"identifier"`
				Title      string `json:"title"`
				Description string `json:"description"`
				URL        string `json:"url"`
			} `json:"issue"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Item{}, fmt.Errorf("decoding linear response: %w", err)
	}
	iss := parsed.Data.Issue
	return Item{
		URI:     iss.URL,
		Source:  "linear",
		Title:   fmt.Sprintf("%s: %s", iss.Identifier, iss.Title),
		Score:   1.0,
		Snippet: truncateRunes(iss.Description, snippetLen),
		Content: renderMarkdown(iss.Title, iss.Description),
	}, nil
}

func (ir *InstantRecall) getJSON(ctx context.Context, providerTag, url, auth string, out any) error {
	resp, err := httpx.CallWithBackoff(ir.http, ir.log, providerTag, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", auth)
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("instant recall fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func renderMarkdown(title, body string) string {
	return fmt.Sprintf("# %s\n\n%s", title, body)
}
