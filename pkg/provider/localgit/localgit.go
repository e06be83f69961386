// Package localgit syncs commit activity from local git repositories
// by shelling out to the git binary. No git-walking library appears
// anywhere in the vetted dependency set, so this is deliberately built
// on os/exec rather than a fabricated dependency.
package localgit

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/minnahq/minna/pkg/provider"
	"github.com/minnahq/minna/pkg/store"
)

const lookbackDays = 90

// Provider implements provider.SyncProvider for local git repositories.
// Unlike the remote providers, it has no auth step and is configured
// with a fixed set of repository paths at construction time.
type Provider struct {
	repoPaths []string
}

func New(repoPaths []string) *Provider {
	return &Provider{repoPaths: repoPaths}
}

func (p *Provider) Name() string        { return "localgit" }
func (p *Provider) DisplayName() string { return "Local Git" }

func (p *Provider) Discover(sc provider.SyncContext) (any, error) {
	var reachable []string
	for _, path := range p.repoPaths {
		if err := runGit(sc.Context, path, "rev-parse", "--is-inside-work-tree"); err == nil {
			reachable = append(reachable, path)
		}
	}
	return reachable, nil
}

type commit struct {
	Hash       string
	AuthorName string
	Date       time.Time
	Files      []string
}

const logFormat = "--pretty=format:%x1e%H%x1f%an%x1f%aI"

func (p *Provider) Sync(sc provider.SyncContext, sinceDays int, mode provider.Mode) (provider.SyncSummary, error) {
	summary := provider.SyncSummary{Provider: p.Name(), UpdatedAt: time.Now().UTC()}

	cursor, err := provider.GetSyncCursor(sc, p.Name())
	if err != nil {
		return summary, err
	}
	since := provider.CalculateSince(sinceDays, mode, cursor)
	floor := time.Now().AddDate(0, 0, -lookbackDays)
	if since.Before(floor) {
		since = floor
	}

	var maxDate time.Time
	for _, repoPath := range p.repoPaths {
		commits, err := p.logSince(sc.Context, repoPath, since)
		if err != nil {
			return summary, fmt.Errorf("git log for %s: %w", repoPath, err)
		}
		for _, c := range commits {
			summary.ItemsScanned++
			if err := p.indexCommit(sc, repoPath, c); err != nil {
				return summary, fmt.Errorf("indexing %s: %w", c.Hash, err)
			}
			summary.DocumentsProcessed++
			if c.Date.After(maxDate) {
				maxDate = c.Date
			}
		}
	}

	if !maxDate.IsZero() {
		if err := provider.SetSyncCursor(sc, p.Name(), maxDate.UTC().Format(time.RFC3339)); err != nil {
			return summary, fmt.Errorf("advancing cursor: %w", err)
		}
	}
	return summary, nil
}

// logSince runs `git log --name-only` and parses the record-separated
// output into commits with their changed file paths.
func (p *Provider) logSince(ctx context.Context, repoPath string, since time.Time) ([]commit, error) {
	cmd := exec.CommandContext(ctx, "git", "log",
		"--since="+since.Format("2006-01-02T15:04:05"),
		logFormat, "--name-only")
	cmd.Dir = repoPath
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return parseLog(stdout.String()), nil
}

func parseLog(output string) []commit {
	var commits []commit
	records := strings.Split(output, "\x1e")
	for _, rec := range records {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		scanner := bufio.NewScanner(strings.NewReader(rec))
		if !scanner.Scan() {
			continue
		}
		header := strings.Split(scanner.Text(), "\x1f")
		if len(header) != 3 {
			continue
		}
		date, err := time.Parse(time.RFC3339, header[2])
		if err != nil {
			continue
		}
		c := commit{Hash: header[0], AuthorName: header[1], Date: date}
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				c.Files = append(c.Files, line)
			}
		}
		commits = append(commits, c)
	}
	return commits
}

func (p *Provider) indexCommit(sc provider.SyncContext, repoPath string, c commit) error {
	repoName := filepath.Base(repoPath)
	uri := fmt.Sprintf("localgit://%s/%s", repoName, c.Hash)

	if err := provider.IndexDocument(sc, provider.Document{
		URI:    uri,
		Source: "localgit",
		Title:  fmt.Sprintf("%s: %s", repoName, c.Hash[:shortHashLen(c.Hash)]),
		Body:   strings.Join(c.Files, "\n"),
	}); err != nil {
		return err
	}

	authorNode := store.NodeRef{NodeType: "user", Provider: "localgit", ExternalID: c.AuthorName, DisplayName: strPtr(c.AuthorName)}
	repoNode := store.NodeRef{NodeType: "project", Provider: "localgit", ExternalID: repoName, DisplayName: strPtr(repoName)}

	edges := []provider.Edge{
		{From: authorNode, To: repoNode, Relation: "CommittedTo", ObservedAt: c.Date},
	}
	for _, f := range c.Files {
		fileNode := store.NodeRef{
			NodeType: "file", Provider: "localgit",
			ExternalID: repoName + ":" + f, DisplayName: strPtr(f),
		}
		edges = append(edges, provider.Edge{From: authorNode, To: fileNode, Relation: "EditedFile", ObservedAt: c.Date})
	}
	return provider.IndexEdges(sc, edges)
}

func shortHashLen(hash string) int {
	if len(hash) < 8 {
		return len(hash)
	}
	return 8
}

func strPtr(s string) *string { return &s }

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Run()
}
