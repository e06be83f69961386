// Package slack syncs channel/DM history from the Slack Web API,
// grounded on the framework's call_with_backoff helper in
// pkg/provider/httpx and the indexing helpers in pkg/provider.
package slack

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/provider/httpx"
	"github.com/minnahq/minna/pkg/store"
)

const baseURL = "https://slack.com/api"

// Provider implements provider.SyncProvider for Slack.
type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Name() string        { return "slack" }
func (p *Provider) DisplayName() string { return "Slack" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	token, err := sc.Secrets.Get(sc.Context, "slack_token")
	if err != nil {
		return nil, err
	}
	resp, err := p.call(sc, token, "auth.test", nil)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

type userInfo struct {
	Name        string
	DisplayName string
}

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	token, err := sc.Secrets.Get(sc.Context, "slack_token")
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, p.Name())
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	users, err := p.buildUserCache(sc, token)
	if err != nil {
		return summary, fmt.Errorf("building user cache: %w", err)
	}

	channels, err := p.listConversations(sc, token)
	if err != nil {
		return summary, fmt.Errorf("listing conversations: %w", err)
	}

	dms, regular := partitionChannels(channels)
	ordered := append(dms, regular...)

	maxTS := since.Unix()
	for _, ch := range ordered {
		latest, err := p.syncChannel(sc, token, ch, users, since)
		if err != nil {
			return summary, fmt.Errorf("syncing channel %s: %w", ch.ID, err)
		}
		summary.ItemsScanned += latest.scanned
		summary.DocumentsProcessed += latest.documents
		if latest.maxTS > maxTS {
			maxTS = latest.maxTS
		}
	}

	if err := provider.SetSyncCursor(sc, p.Name(), strconv.FormatInt(maxTS, 10)); err != nil {
		return summary, fmt.Errorf("advancing cursor: %w", err)
	}
	return summary, nil
}

type channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsIM   bool   `json:"is_im"`
	IsMpim bool   `json:"is_mpim"`
}

func partitionChannels(channels []channel) (dms, regular []channel) {
	for _, c := range channels {
		if c.IsIM || c.IsMpim {
			dms = append(dms, c)
		} else {
			regular = append(regular, c)
		}
	}
	return dms, regular
}

func (p *Provider) buildUserCache(sc provider.SyncContext, token string) (map[string]userInfo, error) {
	cache := map[string]userInfo{}
	cursorParam := ""
	for {
		params := url.Values{"limit": {"200"}}
		if cursorParam != "" {
			params.Set("cursor", cursorParam)
		}
		var out struct {
			Members []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Profile struct {
					RealName string `json:"real_name"`
				} `json:"profile"`
			} `json:"members"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := p.callInto(sc, token, "users.list", params, &out); err != nil {
			return nil, err
		}
		for _, m := range out.Members {
			name := m.Profile.RealName
			if name == "" {
				name = m.Name
			}
			cache[m.ID] = userInfo{Name: m.Name, DisplayName: name}
		}
		if out.ResponseMetadata.NextCursor == "" {
			break
		}
		cursorParam = out.ResponseMetadata.NextCursor
	}
	return cache, nil
}

func (p *Provider) listConversations(sc provider.SyncContext, token string) ([]channel, error) {
	var channels []channel
	cursorParam := ""
	for {
		params := url.Values{
			"types": {"public_channel,private_channel,im,mpim"},
			"limit": {"200"},
		}
		if cursorParam != "" {
			params.Set("cursor", cursorParam)
		}
		var out struct {
			Channels         []channel `json:"channels"`
			ResponseMetadata struct {
				NextCursor string `json:"next_cursor"`
			} `json:"response_metadata"`
		}
		if err := p.callInto(sc, token, "users.conversations", params, &out); err != nil {
			return nil, err
		}
		channels = append(channels, out.Channels...)
		if out.ResponseMetadata.NextCursor == "" {
			break
		}
		cursorParam = out.ResponseMetadata.NextCursor
	}
	return channels, nil
}

type message struct {
	Type       string `json:"type"`
	User       string `json:"user"`
	Text       string `json:"text"`
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts"`
	ReplyCount int    `json:"reply_count"`
}

type channelSyncResult struct {
	scanned   int
	documents int
	maxTS     int64
}

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)>`)

func (p *Provider) syncChannel(sc provider.SyncContext, token string, ch channel, users map[string]userInfo, since time.Time) (channelSyncResult, error) {
	var result channelSyncResult
	oldest := fmt.Sprintf("%.6f", float64(since.Unix()))

	params := url.Values{"channel": {ch.ID}, "oldest": {oldest}, "limit": {"200"}}
	var out struct {
		Messages []message `json:"messages"`
		HasMore  bool      `json:"has_more"`
	}
	if err := p.callInto(sc, token, "conversations.history", params, &out); err != nil {
		return result, err
	}

	for _, m := range out.Messages {
		result.scanned++
		if ts, err := parseSlackTS(m.TS); err == nil && ts > result.maxTS {
			result.maxTS = ts
		}
		if m.ThreadTS != "" && m.ThreadTS != m.TS {
			continue // only top-level parents synthesize a document
		}

		var replies []message
		if m.ReplyCount > 0 {
			if fetched, err := p.fetchReplies(sc, token, ch.ID, m.TS); err == nil {
				replies = fetched
			}
		}

		body := p.renderMessage(ch, m, replies, users)
		if err := provider.IndexDocument(sc, provider.Document{
			URI:    fmt.Sprintf("slack://%s/%s", ch.ID, m.TS),
			Source: "slack",
			Title:  fmt.Sprintf("#%s: %s", channelLabel(ch), truncate(m.Text, 60)),
			Body:   body,
		}); err != nil {
			return result, err
		}
		result.documents++

		if err := p.indexEdges(sc, ch, m, replies, users); err != nil {
			return result, err
		}
	}
	return result, nil
}

func channelLabel(ch channel) string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.ID
}

func (p *Provider) renderMessage(ch channel, m message, replies []message, users map[string]userInfo) string {
	ts, _ := parseSlackTS(m.TS)
	author := resolveUser(users, m.User)
	permalink := fmt.Sprintf("https://slack.com/archives/%s/p%s", ch.ID, strings.Replace(m.TS, ".", "", 1))

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Channel**: #%s\n", channelLabel(ch))
	fmt.Fprintf(&sb, "**Author**: %s\n", author)
	fmt.Fprintf(&sb, "**Time**: %s\n", time.Unix(ts, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Link**: %s\n\n", permalink)
	fmt.Fprintf(&sb, "**%s**: %s", author, resolveMentions(m.Text, users))

	for _, r := range replies {
		if r.TS == m.TS {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n\n**%s**: %s", resolveUser(users, r.User), resolveMentions(r.Text, users)))
	}
	return sb.String()
}

func (p *Provider) fetchReplies(sc provider.SyncContext, token, channelID, threadTS string) ([]message, error) {
	params := url.Values{"channel": {channelID}, "ts": {threadTS}, "limit": {"200"}}
	var out struct {
		Messages []message `json:"messages"`
	}
	if err := p.callInto(sc, token, "conversations.replies", params, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (p *Provider) indexEdges(sc provider.SyncContext, ch channel, m message, replies []message, users map[string]userInfo) error {
	msgNode := store.NodeRef{NodeType: "message", Provider: "slack", ExternalID: m.TS}
	chanNode := store.NodeRef{NodeType: "channel", Provider: "slack", ExternalID: ch.ID, DisplayName: strPtr(channelLabel(ch))}

	edges := []provider.Edge{
		{From: msgNode, To: chanNode, Relation: "PostedIn"},
	}
	if m.User != "" {
		authorNode := store.NodeRef{NodeType: "user", Provider: "slack", ExternalID: m.User, DisplayName: strPtr(resolveUser(users, m.User))}
		edges = append(edges,
			provider.Edge{From: authorNode, To: msgNode, Relation: "AuthorOf"},
			provider.Edge{From: authorNode, To: chanNode, Relation: "MemberOf"},
		)
	}

	seenParticipant := map[string]bool{m.User: true}
	for _, r := range replies {
		if r.TS == m.TS || r.User == "" || seenParticipant[r.User] {
			continue
		}
		seenParticipant[r.User] = true
		participant := store.NodeRef{NodeType: "user", Provider: "slack", ExternalID: r.User, DisplayName: strPtr(resolveUser(users, r.User))}
		edges = append(edges, provider.Edge{From: participant, To: chanNode, Relation: "MemberOf"})
	}

	for _, match := range mentionPattern.FindAllStringSubmatch(m.Text, -1) {
		userID := match[1]
		mentioned := store.NodeRef{NodeType: "user", Provider: "slack", ExternalID: userID, DisplayName: strPtr(resolveUser(users, userID))}
		edges = append(edges, provider.Edge{From: mentioned, To: msgNode, Relation: "MentionedIn"})
	}
	return provider.IndexEdges(sc, edges)
}

func resolveUser(users map[string]userInfo, id string) string {
	if id == "" {
		return "unknown"
	}
	if u, ok := users[id]; ok {
		return u.DisplayName
	}
	return id
}

func resolveMentions(text string, users map[string]userInfo) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		id := mentionPattern.FindStringSubmatch(match)[1]
		return "@" + resolveUser(users, id)
	})
}

func parseSlackTS(ts string) (int64, error) {
	parts := strings.SplitN(ts, ".", 2)
	return strconv.ParseInt(parts[0], 10, 64)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func strPtr(s string) *string { return &s }

func (p *Provider) call(sc provider.SyncContext, token, method string, params url.Values) (map[string]any, error) {
	var out map[string]any
	if err := p.callInto(sc, token, method, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) callInto(sc provider.SyncContext, token, method string, params url.Values, out any) error {
	resp, err := httpx.CallWithBackoff(sc.HTTP, sc.Log, "slack", func() (*http.Request, error) {
		u := baseURL + "/" + method
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(sc.Context, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	body, err := decodeBoth(resp, &envelope, out)
	if err != nil {
		return err
	}
	if !envelope.OK {
		return fmt.Errorf("slack %s failed: %s", method, envelope.Error)
	}
	_ = body
	return nil
}

func decodeBoth(resp *http.Response, envelope any, out any) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading slack response body: %w", err)
	}
	if err := json.Unmarshal(data, envelope); err != nil {
		return nil, fmt.Errorf("decoding slack envelope: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decoding slack response: %w", err)
		}
	}
	return data, nil
}
