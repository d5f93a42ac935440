package agent

import (
	"context"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/errors"
)

// Start fetches the tool catalog and performs the initial resource/prompt
// refresh. Must be called once after the transport is connected, before the
// first query.
func (a *Agent) Start(ctx context.Context) error {
	tools, err := a.transport.ListTools(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to load tool catalog")
	}
	a.tools = tools

	templates, err := a.transport.ListResourceTemplates(ctx)
	if err != nil {
		a.logger.Warn("failed to list resource templates", "error", err)
	} else {
		a.logger.Debug("resource templates available", "count", len(templates))
	}

	return a.Refresh(ctx)
}

// Refresh replaces the resource and prompt catalogs wholesale. Either both
// catalogs are replaced or neither is; a listing failure leaves the previous
// snapshot intact. The snapshot is the sole source of truth for validating
// model-proposed selections.
func (a *Agent) Refresh(ctx context.Context) error {
	resources, err := a.transport.ListResources(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to refresh resource catalog")
	}
	prompts, err := a.transport.ListPrompts(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to refresh prompt catalog")
	}

	nextResources := make(map[string]*mcp.Resource, len(resources))
	for _, res := range resources {
		if res == nil || hiddenByGlob(res.Name, a.hiddenResources, a.logger) {
			continue
		}
		nextResources[res.Name] = res
	}
	nextPrompts := make(map[string]*mcp.Prompt, len(prompts))
	for _, prompt := range prompts {
		if prompt == nil || hiddenByGlob(prompt.Name, a.hiddenPrompts, a.logger) {
			continue
		}
		nextPrompts[prompt.Name] = prompt
	}

	a.resources = nextResources
	a.prompts = nextPrompts
	return nil
}

// ToolCount returns the number of tools offered to the model.
func (a *Agent) ToolCount() int { return len(a.tools) }

// ResourceCount returns the number of selectable resources in the catalog.
func (a *Agent) ResourceCount() int { return len(a.resources) }

// PromptCount returns the number of selectable prompts in the catalog.
func (a *Agent) PromptCount() int { return len(a.prompts) }

// hiddenByGlob reports whether name matches any of the doublestar patterns.
// Invalid patterns are logged and skipped.
func hiddenByGlob(name string, patterns []string, logger *slog.Logger) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, name)
		if err != nil {
			logger.Warn("invalid glob pattern, ignoring", "pattern", pattern, "error", err)
			continue
		}
		if match {
			return true
		}
	}
	return false
}
