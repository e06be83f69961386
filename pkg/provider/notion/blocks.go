package notion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minnahq/minna/pkg/provider"
)

type richText struct {
	PlainText string `json:"plain_text"`
}

type blockListResponse struct {
	Results    []rawBlock `json:"results"`
	HasMore    bool       `json:"has_more"`
	NextCursor string     `json:"next_cursor"`
}

type rawBlock struct {
	ID          string                     `json:"id"`
	Type        string                     `json:"type"`
	HasChildren bool                       `json:"has_children"`
	Fields      map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the type-keyed payload field (e.g. "paragraph",
// "heading_1") alongside the fixed fields, since Notion's block schema
// nests type-specific content under a key matching the block's type.
func (b *rawBlock) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	b.ID, b.Type, b.HasChildren = a.ID, a.Type, a.HasChildren

	var full map[string]json.RawMessage
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	b.Fields = full
	return nil
}

const maxBlockDepth = 6

// renderBlocks fetches a block's children recursively and converts
// them to a Markdown-ish text rendering per Notion's block taxonomy.
func (p *Provider) renderBlocks(sc provider.SyncContext, token, blockID string, depth int) (string, error) {
	if depth > maxBlockDepth {
		return "", nil
	}

	var out strings.Builder
	cursor := ""
	for {
		url := fmt.Sprintf("%s/blocks/%s/children?page_size=100", apiBase, blockID)
		if cursor != "" {
			url += "&start_cursor=" + cursor
		}
		var resp blockListResponse
		if err := p.get(sc, token, url, &resp); err != nil {
			return "", err
		}

		for _, b := range resp.Results {
			line := renderBlockLine(b)
			if line != "" {
				out.WriteString(strings.Repeat("  ", depth))
				out.WriteString(line)
				out.WriteString("\n")
			}
			if b.HasChildren {
				child, err := p.renderBlocks(sc, token, b.ID, depth+1)
				if err != nil {
					return "", err
				}
				out.WriteString(child)
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return out.String(), nil
}

func renderBlockLine(b rawBlock) string {
	text := richTextOf(b, b.Type)
	switch b.Type {
	case "heading_1":
		return "# " + text
	case "heading_2":
		return "## " + text
	case "heading_3":
		return "### " + text
	case "bulleted_list_item":
		return "- " + text
	case "numbered_list_item":
		return "1. " + text
	case "to_do":
		if boolField(b, "checked") {
			return "[x] " + text
		}
		return "[ ] " + text
	case "code":
		return "```" + stringField(b, "code", "language") + "\n" + text + "\n```"
	case "callout":
		return "[!] " + text
	case "child_page":
		return "[Page: " + stringField(b, "child_page", "title") + "]"
	case "child_database":
		return "[Database: " + stringField(b, "child_database", "title") + "]"
	case "divider":
		return "---"
	case "image", "video", "file", "pdf", "bookmark", "embed":
		return fmt.Sprintf("[%s: %s]", b.Type, urlField(b, b.Type))
	case "equation":
		return "$" + stringField(b, "equation", "expression") + "$"
	case "paragraph", "quote":
		return text
	default:
		return text
	}
}

func richTextOf(b rawBlock, typ string) string {
	raw, ok := b.Fields[typ]
	if !ok {
		return ""
	}
	var content struct {
		RichText []richText `json:"rich_text"`
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, t := range content.RichText {
		sb.WriteString(t.PlainText)
	}
	return sb.String()
}

func boolField(b rawBlock, field string) bool {
	raw, ok := b.Fields[b.Type]
	if !ok {
		return false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	var v bool
	_ = json.Unmarshal(m[field], &v)
	return v
}

func stringField(b rawBlock, typ, field string) string {
	raw, ok := b.Fields[typ]
	if !ok {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	var v string
	_ = json.Unmarshal(m[field], &v)
	return v
}

func urlField(b rawBlock, typ string) string {
	raw, ok := b.Fields[typ]
	if !ok {
		return ""
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	var external struct {
		External struct {
			URL string `json:"url"`
		} `json:"external"`
		URL string `json:"url"`
	}
	_ = json.Unmarshal(raw, &external)
	if external.External.URL != "" {
		return external.External.URL
	}
	return external.URL
}
