package daemon

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minnahq/minna/pkg/checkpoint"
)

// mcpHandler implements the MCP-socket dispatch table. The listener
// only starts accepting once the core is ready, so core is never nil
// here in normal operation; the guard stays defensive.
func (d *Daemon) mcpHandler(ctx context.Context, req Request, _ func(event any)) Response {
	core := d.Core()
	if core == nil {
		return Response{OK: false, Error: "Engine still initializing…"}
	}

	switch req.name() {
	case "get_context":
		return d.getContext(ctx, core, req)
	case "read_resource":
		return d.readResource(ctx, core, req)
	case "save_state":
		return d.saveState(core, req)
	case "load_state":
		return d.loadState(core, req)
	default:
		return Response{OK: false, Error: "unknown mcp tool"}
	}
}

type getContextParams struct {
	Query string  `json:"query"`
	Pack  *string `json:"pack"`
	Limit *int    `json:"limit"`
}

func (d *Daemon) getContext(ctx context.Context, core *Core, req Request) Response {
	var p getContextParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}
	pack := ""
	if p.Pack != nil {
		pack = *p.Pack
	}
	limit := 0
	if p.Limit != nil {
		limit = *p.Limit
	}

	result, err := core.Retrieval.GetContext(ctx, p.Query, pack, limit)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Result: result}
}

type readResourceParams struct {
	URI string `json:"uri"`
}

func (d *Daemon) readResource(ctx context.Context, core *Core, req Request) Response {
	var p readResourceParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}

	doc, err := core.Store.GetByURI(p.URI)
	if err == nil && doc != nil {
		title := ""
		if doc.Title != nil {
			title = *doc.Title
		}
		return Response{OK: true, Result: map[string]any{
			"uri": doc.URI, "source": doc.Source, "title": title, "content": doc.Body,
		}}
	}

	if core.Instant != nil {
		if item, ok, err := core.Instant.Resolve(ctx, p.URI); err == nil && ok {
			return Response{OK: true, Result: map[string]any{
				"uri": item.URI, "source": item.Source, "title": item.Title, "content": item.Content,
			}}
		}
	}

	return Response{OK: false, Error: fmt.Sprintf("unknown resource %q", p.URI)}
}

type saveStateParams struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Task      string   `json:"task"`
	NextSteps string   `json:"next_steps"`
	Files     []string `json:"files"`
	Trigger   string   `json:"trigger"`
}

func (d *Daemon) saveState(core *Core, req Request) Response {
	var p saveStateParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}

	path, err := core.Checkpoints.Save(checkpoint.Checkpoint{
		Title: p.Title, Summary: p.Summary, Task: p.Task,
		NextSteps: p.NextSteps, Files: p.Files, Trigger: p.Trigger,
	})
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Result: map[string]any{"path": path}}
}

type loadStateParams struct {
	Title   *string `json:"title"`
	Version *int    `json:"version"`
}

func (d *Daemon) loadState(core *Core, req Request) Response {
	var p loadStateParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decoding params: %v", err)}
	}
	title, version := "", 0
	if p.Title != nil {
		title = *p.Title
	}
	if p.Version != nil {
		version = *p.Version
	}

	c, err := core.Checkpoints.Load(title, version)
	if err != nil {
		return Response{OK: false, Error: err.Error()}
	}
	return Response{OK: true, Result: c}
}
