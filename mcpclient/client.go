// Package mcpclient manages a single connection to an MCP server subprocess
// and exposes its tool, resource, prompt, and resource-template capabilities.
package mcpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// ServerSpec describes how to launch and identify the MCP server subprocess.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
}

// ToolError reports that a tool ran but returned an error payload. The
// message is meant to be fed back to the model, not shown to the user.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q returned an error: %s", e.Tool, e.Message)
}

// Client owns one MCP server connection. It is not safe for concurrent use;
// the session model is a single in-flight operation at a time.
type Client struct {
	spec    ServerSpec
	logger  *slog.Logger
	cmd     *exec.Cmd
	session *mcp.ClientSession
}

// New creates a disconnected client for the given server.
func New(spec ServerSpec, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{spec: spec, logger: logger}
}

// Connect starts the server subprocess and initializes the MCP session.
// Calling Connect on an already-connected client fails with
// errors.ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context) error {
	if c.session != nil {
		return errors.Wrapf(errors.ErrAlreadyConnected, "connect to %q", c.spec.Name)
	}

	cmd := exec.Command(c.spec.Command, c.spec.Args...)
	cmd.Stderr = os.Stderr
	if c.spec.Dir != "" {
		cmd.Dir = c.spec.Dir
	}
	cmd.Env = os.Environ()
	for key, value := range c.spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "assistant", Version: "v0.1.0"}, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return errors.Wrapf(err, "failed to connect to MCP server %q", c.spec.Name)
	}

	c.cmd = cmd
	c.session = session
	return nil
}

// connectOver initializes the session over an externally supplied transport.
// Used by tests to connect to an in-process server.
func (c *Client) connectOver(ctx context.Context, transport mcp.Transport) error {
	if c.session != nil {
		return errors.Wrapf(errors.ErrAlreadyConnected, "connect to %q", c.spec.Name)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "assistant", Version: "v0.1.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to MCP server %q", c.spec.Name)
	}
	c.session = session
	return nil
}

// Disconnect closes the session and reaps the subprocess. It is idempotent:
// disconnecting an already-disconnected client is a no-op.
func (c *Client) Disconnect() error {
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.cmd = nil
	return errors.Wrapf(err, "failed to close session to %q", c.spec.Name)
}

// Connected reports whether a session is established.
func (c *Client) Connected() bool {
	return c.session != nil
}

// ListTools returns the server's tool catalog converted to ToolSpec form.
func (c *Client) ListTools(ctx context.Context) ([]chat.ToolSpec, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	var specs []chat.ToolSpec
	params := &mcp.ListToolsParams{}
	for {
		page, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list tools from %q", c.spec.Name)
		}
		for _, t := range page.Tools {
			spec := chat.ToolSpec{Name: t.Name, Description: t.Description}
			if t.InputSchema != nil {
				raw, err := json.Marshal(t.InputSchema)
				if err == nil {
					var schema map[string]any
					if json.Unmarshal(raw, &schema) == nil {
						spec.InputSchema = schema
					}
				}
			}
			specs = append(specs, spec)
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	if len(specs) == 0 {
		c.logger.Warn("no tools found on server", "server", c.spec.Name)
	}
	return specs, nil
}

// ListResources returns the server's resource catalog.
func (c *Client) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	var resources []*mcp.Resource
	params := &mcp.ListResourcesParams{}
	for {
		page, err := c.session.ListResources(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list resources from %q", c.spec.Name)
		}
		resources = append(resources, page.Resources...)
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	if len(resources) == 0 {
		c.logger.Warn("no resources found on server", "server", c.spec.Name)
	}
	return resources, nil
}

// ListPrompts returns the server's prompt-template catalog.
func (c *Client) ListPrompts(ctx context.Context) ([]*mcp.Prompt, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	var prompts []*mcp.Prompt
	params := &mcp.ListPromptsParams{}
	for {
		page, err := c.session.ListPrompts(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list prompts from %q", c.spec.Name)
		}
		prompts = append(prompts, page.Prompts...)
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	if len(prompts) == 0 {
		c.logger.Warn("no prompts found on server", "server", c.spec.Name)
	}
	return prompts, nil
}

// ListResourceTemplates returns the server's resource-template catalog.
func (c *Client) ListResourceTemplates(ctx context.Context) ([]*mcp.ResourceTemplate, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	var templates []*mcp.ResourceTemplate
	params := &mcp.ListResourceTemplatesParams{}
	for {
		page, err := c.session.ListResourceTemplates(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list resource templates from %q", c.spec.Name)
		}
		templates = append(templates, page.ResourceTemplates...)
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}

	if len(templates) == 0 {
		c.logger.Warn("no resource templates found on server", "server", c.spec.Name)
	}
	return templates, nil
}

// CallTool invokes a tool and flattens the result into ordered string parts:
// text content verbatim, binary content base64-encoded, embedded resources
// resolved to their text or base64 blob. A result flagged as an error is
// returned as a ToolError carrying the joined parts.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) ([]string, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call tool %q", name)
	}

	parts := flattenContent(result.Content)
	if len(parts) == 0 {
		c.logger.Warn("no content in tool call result", "tool", name)
	}
	if result.IsError {
		return nil, &ToolError{Tool: name, Message: joinParts(parts)}
	}
	return parts, nil
}

// ReadResource fetches the ordered content parts for a resource URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]*mcp.ResourceContents, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	result, err := c.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read resource %q", uri)
	}
	if len(result.Contents) == 0 {
		c.logger.Warn("no content read for resource", "uri", uri)
	}
	return result.Contents, nil
}

// GetPrompt renders a prompt template with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) ([]*mcp.PromptMessage, error) {
	if c.session == nil {
		return nil, errors.ErrNotConnected
	}

	result, err := c.session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get prompt %q", name)
	}
	if len(result.Messages) == 0 {
		c.logger.Warn("no messages rendered for prompt", "prompt", name)
	}
	return result.Messages, nil
}

// flattenContent reduces MCP content parts to strings, in order.
func flattenContent(content []mcp.Content) []string {
	var parts []string
	for _, item := range content {
		switch v := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.ImageContent:
			parts = append(parts, base64.StdEncoding.EncodeToString(v.Data))
		case *mcp.AudioContent:
			parts = append(parts, base64.StdEncoding.EncodeToString(v.Data))
		case *mcp.EmbeddedResource:
			if v.Resource == nil {
				continue
			}
			if len(v.Resource.Blob) > 0 {
				parts = append(parts, base64.StdEncoding.EncodeToString(v.Resource.Blob))
			} else {
				parts = append(parts, v.Resource.Text)
			}
		}
	}
	return parts
}

func joinParts(parts []string) string {
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += "\n"
		}
		joined += p
	}
	return joined
}
