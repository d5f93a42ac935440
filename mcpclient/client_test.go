package mcpclient

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationsRequireConnection(t *testing.T) {
	c := New(ServerSpec{Name: "test-server"}, nil)
	ctx := context.Background()

	_, err := c.ListTools(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.ListResources(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.ListPrompts(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.ListResourceTemplates(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.CallTool(ctx, "add", nil)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.ReadResource(ctx, "docs://math")
	assert.True(t, errors.Is(err, errors.ErrNotConnected))

	_, err = c.GetPrompt(ctx, "helper", nil)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestDisconnectIdempotent(t *testing.T) {
	c := New(ServerSpec{Name: "test-server"}, nil)
	assert.False(t, c.Connected())
	assert.NoError(t, c.Disconnect())
	assert.NoError(t, c.Disconnect())
}

func TestToolErrorMessage(t *testing.T) {
	err := &ToolError{Tool: "add", Message: "division by zero"}
	assert.Equal(t, `tool "add" returned an error: division by zero`, err.Error())

	var te *ToolError
	assert.True(t, errors.As(error(err), &te))
}

func TestFlattenContent(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G'}
	parts := flattenContent([]mcp.Content{
		&mcp.TextContent{Text: "first"},
		&mcp.ImageContent{MIMEType: "image/png", Data: img},
		&mcp.EmbeddedResource{Resource: &mcp.ResourceContents{URI: "docs://x", Text: "embedded text"}},
		&mcp.EmbeddedResource{Resource: &mcp.ResourceContents{URI: "docs://y", Blob: img}},
		&mcp.EmbeddedResource{},
		&mcp.TextContent{Text: "last"},
	})

	encoded := base64.StdEncoding.EncodeToString(img)
	assert.Equal(t, []string{"first", encoded, "embedded text", encoded, "last"}, parts)
}

func TestJoinParts(t *testing.T) {
	assert.Equal(t, "", joinParts(nil))
	assert.Equal(t, "only", joinParts([]string{"only"}))
	assert.Equal(t, "a\nb\nc", joinParts([]string{"a", "b", "c"}))
}

// newTestSession wires the client to an in-process server over in-memory
// transports.
func newTestSession(t *testing.T, server *mcp.Server) *Client {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	c := New(ServerSpec{Name: "in-process"}, nil)
	require.NoError(t, c.connectOver(ctx, clientTransport))
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func newTestServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v0.0.1"}, nil)

	type addArgs struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	mcp.AddTool(server, &mcp.Tool{Name: "add", Description: "Adds two numbers"},
		func(ctx context.Context, req *mcp.CallToolRequest, args addArgs) (*mcp.CallToolResult, any, error) {
			if args.B < 0 {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: "negative operands unsupported"}},
				}, nil, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					&mcp.TextContent{Text: "sum computed"},
					&mcp.TextContent{Text: "4"},
				},
			}, nil, nil
		})

	server.AddResource(&mcp.Resource{
		Name:     "math-constants",
		URI:      "docs://math",
		MIMEType: "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: "docs://math", MIMEType: "text/plain", Text: "pi = 3.14159"},
			},
		}, nil
	})

	server.AddPrompt(&mcp.Prompt{
		Name:        "calculation-helper",
		Description: "Guides arithmetic",
		Arguments:   []*mcp.PromptArgument{{Name: "operation"}},
	}, func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		op := req.Params.Arguments["operation"]
		return &mcp.GetPromptResult{
			Messages: []*mcp.PromptMessage{
				{Role: "user", Content: &mcp.TextContent{Text: "Show your work for " + op + "."}},
			},
		}, nil
	})

	return server
}

func TestClientAgainstInProcessServer(t *testing.T) {
	c := newTestSession(t, newTestServer())
	ctx := context.Background()

	assert.True(t, c.Connected())
	err := c.connectOver(ctx, nil)
	assert.True(t, errors.Is(err, errors.ErrAlreadyConnected))

	t.Run("list tools", func(t *testing.T) {
		tools, err := c.ListTools(ctx)
		require.NoError(t, err)
		require.Len(t, tools, 1)
		assert.Equal(t, "add", tools[0].Name)
		assert.Equal(t, "Adds two numbers", tools[0].Description)
		require.NotNil(t, tools[0].InputSchema)
		assert.Contains(t, tools[0].InputSchema, "properties")
	})

	t.Run("list resources", func(t *testing.T) {
		resources, err := c.ListResources(ctx)
		require.NoError(t, err)
		require.Len(t, resources, 1)
		assert.Equal(t, "math-constants", resources[0].Name)
		assert.Equal(t, "docs://math", resources[0].URI)
	})

	t.Run("list prompts", func(t *testing.T) {
		prompts, err := c.ListPrompts(ctx)
		require.NoError(t, err)
		require.Len(t, prompts, 1)
		assert.Equal(t, "calculation-helper", prompts[0].Name)
	})

	t.Run("call tool", func(t *testing.T) {
		parts, err := c.CallTool(ctx, "add", map[string]any{"a": 2.0, "b": 2.0})
		require.NoError(t, err)
		assert.Equal(t, []string{"sum computed", "4"}, parts)
	})

	t.Run("tool-level error becomes ToolError", func(t *testing.T) {
		_, err := c.CallTool(ctx, "add", map[string]any{"a": 2.0, "b": -1.0})
		require.Error(t, err)
		var te *ToolError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "add", te.Tool)
		assert.Equal(t, "negative operands unsupported", te.Message)
	})

	t.Run("read resource", func(t *testing.T) {
		contents, err := c.ReadResource(ctx, "docs://math")
		require.NoError(t, err)
		require.Len(t, contents, 1)
		assert.Equal(t, "pi = 3.14159", contents[0].Text)
	})

	t.Run("get prompt", func(t *testing.T) {
		messages, err := c.GetPrompt(ctx, "calculation-helper", map[string]string{"operation": "addition"})
		require.NoError(t, err)
		require.Len(t, messages, 1)
		tc, ok := messages[0].Content.(*mcp.TextContent)
		require.True(t, ok)
		assert.Equal(t, "Show your work for addition.", tc.Text)
	})

	t.Run("disconnect drops the session", func(t *testing.T) {
		require.NoError(t, c.Disconnect())
		assert.False(t, c.Connected())
		_, err := c.ListTools(ctx)
		assert.True(t, errors.Is(err, errors.ErrNotConnected))
	})
}
