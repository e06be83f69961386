// Package checkpoint implements the session-snapshot store behind the
// save_state / load_state MCP tools: one Markdown file per checkpoint
// version under vault/checkpoints, outside the document/graph store.
// Grounded on the teacher's local-adapter frontmatter handling
// (pkg/workspace/adapters/local) for the "parse a small Markdown
// header block" shape; slug derivation uses the teacher's own
// case-conversion library rather than hand-rolled regexp, and version
// bookkeeping (the only piece with no library equivalent anywhere in
// the pack) is plain stdlib string and regexp work.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
)

// Checkpoint is one saved session snapshot.
type Checkpoint struct {
	Title     string
	Summary   string
	Task      string
	NextSteps string
	Files     []string
	Trigger   string
	Version   int
	CreatedAt time.Time
}

// Store persists checkpoints as Markdown files in a directory.
type Store struct {
	dir string
}

// Open ensures dir exists and returns a Store rooted there.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Slugify implements the spec's slug rule: ASCII-lowercase words
// separated by -, stripped of punctuation. Delegates the actual
// case/delimiter conversion to strcase.ToKebab, the same library the
// teacher uses for its own identifier conversions.
func Slugify(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-', r == '_':
			return r
		}
		return -1
	}, title)
	return strings.Trim(strcase.ToKebab(cleaned), "-")
}

var versionPattern = regexp.MustCompile(`^(.+)_v(\d+)\.md$`)

// Save writes c to disk, auto-incrementing its version by scanning the
// directory for the highest existing {slug}_v{k}.md and using k+1. It
// returns the saved path.
func (s *Store) Save(c Checkpoint) (string, error) {
	slug := Slugify(c.Title)
	if slug == "" {
		return "", fmt.Errorf("checkpoint title %q has no usable slug", c.Title)
	}

	next, err := s.nextVersion(slug)
	if err != nil {
		return "", err
	}
	c.Version = next
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	name := fmt.Sprintf("%s_v%d.md", slug, c.Version)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(render(c)), 0o644); err != nil {
		return "", fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) nextVersion(slug string) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("reading checkpoint directory %s: %w", s.dir, err)
	}
	max := 0
	for _, e := range entries {
		m := versionPattern.FindStringSubmatch(e.Name())
		if m == nil || m[1] != slug {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Load resolves title/version per spec: an explicit version (non-zero)
// loads that exact version for the given title; otherwise the newest
// created-at wins, ties broken by highest version. An empty title
// searches across every checkpoint regardless of slug.
func (s *Store) Load(title string, version int) (Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("reading checkpoint directory %s: %w", s.dir, err)
	}

	slug := ""
	if title != "" {
		slug = Slugify(title)
	}

	var candidates []Checkpoint
	for _, e := range entries {
		m := versionPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if slug != "" && m[1] != slug {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return Checkpoint{}, fmt.Errorf("reading checkpoint %s: %w", e.Name(), err)
		}
		c, err := parse(data)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("parsing checkpoint %s: %w", e.Name(), err)
		}
		if version != 0 && c.Version != version {
			continue
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return Checkpoint{}, fmt.Errorf("no checkpoint found (title=%q version=%d)", title, version)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].Version > candidates[j].Version
	})
	return candidates[0], nil
}
