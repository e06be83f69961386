package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// render produces the exact Markdown layout the spec's checkpoint file
// format names: a frontmatter block followed by four fixed sections.
func render(c Checkpoint) string {
	var b strings.Builder

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "title: %s\n", c.Title)
	fmt.Fprintf(&b, "version: %d\n", c.Version)
	fmt.Fprintf(&b, "created: %s\n", c.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "trigger: %s\n", c.Trigger)
	fmt.Fprintf(&b, "---\n\n")

	fmt.Fprintf(&b, "## Summary\n%s\n\n", c.Summary)
	fmt.Fprintf(&b, "## Current Task\n%s\n\n", c.Task)
	fmt.Fprintf(&b, "## Next Steps\n%s\n\n", c.NextSteps)

	fmt.Fprintf(&b, "## Active Files\n")
	for _, f := range c.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	return b.String()
}

// parse is render's inverse. It is deliberately tolerant of trailing
// whitespace but assumes the fixed section order render produces,
// since checkpoint files are never hand-edited in normal operation.
func parse(data []byte) (Checkpoint, error) {
	text := string(data)

	rest, ok := cutPrefix(text, "---\n")
	if !ok {
		return Checkpoint{}, fmt.Errorf("missing frontmatter opening")
	}
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return Checkpoint{}, fmt.Errorf("missing frontmatter closing")
	}
	frontmatter, body := rest[:end], rest[end+len("\n---\n"):]

	c := Checkpoint{}
	for _, line := range strings.Split(frontmatter, "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "title":
			c.Title = value
		case "version":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Checkpoint{}, fmt.Errorf("parsing version %q: %w", value, err)
			}
			c.Version = n
		case "created":
			t, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return Checkpoint{}, fmt.Errorf("parsing created %q: %w", value, err)
			}
			c.CreatedAt = t
		case "trigger":
			c.Trigger = value
		}
	}

	sections := splitSections(strings.TrimLeft(body, "\n"))
	c.Summary = strings.TrimSpace(sections["Summary"])
	c.Task = strings.TrimSpace(sections["Current Task"])
	c.NextSteps = strings.TrimSpace(sections["Next Steps"])
	c.Files = parseFileList(sections["Active Files"])

	return c, nil
}

// splitSections breaks body into a heading -> content map on "## " lines.
func splitSections(body string) map[string]string {
	sections := map[string]string{}
	lines := strings.Split(body, "\n")

	var current string
	var buf strings.Builder
	flush := func() {
		if current != "" {
			sections[current] = buf.String()
			buf.Reset()
		}
	}

	for _, line := range lines {
		if heading, ok := cutPrefix(line, "## "); ok {
			flush()
			current = heading
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	flush()

	return sections
}

func parseFileList(section string) []string {
	var files []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if f, ok := cutPrefix(line, "- "); ok {
			files = append(files, f)
		}
	}
	return files
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
