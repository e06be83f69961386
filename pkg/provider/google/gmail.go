package google

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

const gmailCursorKey = "google_workspace:gmail"

func (p *Provider) syncGmail(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name()}

	svc, err := p.gmailService(sc)
	if err != nil {
		return summary, err
	}

	cursor, err := provider.GetSyncCursor(sc, gmailCursorKey)
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)

	q := fmt.Sprintf("after:%s (is:important OR from:me OR to:me OR cc:me OR bcc:me)", since.Format("2006/01/02"))

	var ids []string
	pageToken := ""
	for {
		call := svc.Users.Messages.List("me").Q(q).MaxResults(100).Context(sc.Context)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		summary.APICalls++
		if err != nil {
			return summary, fmt.Errorf("gmail messages.list: %w", err)
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	var maxInternalDate int64
	for _, id := range ids {
		msg, err := svc.Users.Messages.Get("me", id).Format("metadata").
			MetadataHeaders("From", "To", "Cc", "Bcc", "Subject").
			Context(sc.Context).Do()
		summary.APICalls++
		if err != nil {
			return summary, fmt.Errorf("gmail messages.get %s: %w", id, err)
		}
		summary.ItemsScanned++
		if err := p.indexMessage(sc, msg); err != nil {
			return summary, fmt.Errorf("indexing message %s: %w", id, err)
		}
		summary.DocumentsProcessed++
		if msg.InternalDate > maxInternalDate {
			maxInternalDate = msg.InternalDate
		}
	}

	if maxInternalDate > 0 {
		t := time.UnixMilli(maxInternalDate).UTC()
		if err := provider.SetSyncCursor(sc, gmailCursorKey, t.Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing gmail cursor: %w", err)
		}
	}
	return summary, nil
}

func header(msg *gmail.Message, name string) string {
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (p *Provider) indexMessage(sc provider.SyncContext, msg *gmail.Message) error {
	subject := header(msg, "Subject")
	from := header(msg, "From")
	uri := fmt.Sprintf("https://mail.google.com/mail/u/0/#all/%s", msg.Id)

	if err := provider.IndexDocument(sc, provider.Document{
		URI:    uri,
		Source: "gmail",
		Title:  subject,
		Body:   msg.Snippet,
	}); err != nil {
		return err
	}

	msgNode := store.NodeRef{NodeType: "message", Provider: "gmail", ExternalID: msg.Id, DisplayName: strPtr(subject)}
	var edges []provider.Edge

	for _, addr := range parseAddresses(from) {
		edges = append(edges, provider.Edge{
			From: store.NodeRef{NodeType: "user", Provider: "gmail", ExternalID: addr.Address, DisplayName: strPtr(addr.Name)},
			To:   msgNode, Relation: "AuthorOf",
		})
	}
	for _, field := range []string{"To", "Cc", "Bcc"} {
		for _, addr := range parseAddresses(header(msg, field)) {
			edges = append(edges, provider.Edge{
				From: store.NodeRef{NodeType: "user", Provider: "gmail", ExternalID: addr.Address, DisplayName: strPtr(addr.Name)},
				To:   msgNode, Relation: "MentionedIn",
			})
		}
	}
	return provider.IndexEdges(sc, edges)
}

// parseAddresses extracts "Name <addr>" or bare-address entries from
// a comma-separated header value, tolerating malformed addresses by
// skipping them.
func parseAddresses(header string) []*mail.Address {
	if header == "" {
		return nil
	}
	list, err := mail.ParseAddressList(header)
	if err != nil {
		return nil
	}
	return list
}
