package agent

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectionResponse(text string) *chat.Response {
	return &chat.Response{
		StopReason: chat.StopEndTurn,
		Content:    []chat.Block{chat.TextBlock(text)},
	}
}

func TestSelectResourcesEmptyCatalogSkipsModel(t *testing.T) {
	transport := &fakeTransport{}
	model := &scriptedModel{}
	a := newTestAgent(t, transport, model)

	selected := a.SelectResources(context.Background(), "anything")
	assert.Empty(t, selected)
	assert.Empty(t, model.requests, "no model call expected for an empty catalog")
}

func TestSelectResourcesFiltersToCatalog(t *testing.T) {
	transport := &fakeTransport{
		resources: []*mcp.Resource{
			{Name: "math-constants", URI: "docs://math", Description: "Mathematical constants"},
			{Name: "unit-tables", URI: "docs://units"},
		},
	}
	model := &scriptedModel{responses: []*chat.Response{
		selectionResponse(`Sure! Here are the relevant ones: ["unit-tables", "made-up", "math-constants"]`),
	}}
	a := newTestAgent(t, transport, model)

	selected := a.SelectResources(context.Background(), "convert 3 feet to meters")

	// Hallucinated names are dropped; surviving names keep the model's order.
	assert.Equal(t, []string{"unit-tables", "math-constants"}, selected)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, int64(selectionMaxTokens), req.MaxTokens)
	assert.Empty(t, req.Tools, "selection calls must not offer tools")
	require.Len(t, req.Messages, 1)
	prompt := req.Messages[0].Content[0].Text
	assert.Contains(t, prompt, "convert 3 feet to meters")
	assert.Contains(t, prompt, "Mathematical constants")
	assert.Contains(t, prompt, "Resource: unit-tables", "description fallback for undescribed resources")
}

func TestSelectResourcesMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"no brackets", "I don't think any resources are needed here."},
		{"truncated array", `["math-constants", "unit-`},
		{"wrong element type", `[42, true]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &fakeTransport{
				resources: []*mcp.Resource{{Name: "math-constants", URI: "docs://math"}},
			}
			model := &scriptedModel{responses: []*chat.Response{selectionResponse(tc.text)}}
			a := newTestAgent(t, transport, model)

			assert.Empty(t, a.SelectResources(context.Background(), "question"))
		})
	}
}

func TestSelectResourcesModelErrorDegrades(t *testing.T) {
	transport := &fakeTransport{
		resources: []*mcp.Resource{{Name: "math-constants", URI: "docs://math"}},
	}
	model := &scriptedModel{err: assert.AnError}
	a := newTestAgent(t, transport, model)

	assert.Empty(t, a.SelectResources(context.Background(), "question"))
}

func TestSelectPromptsEmptyCatalogSkipsModel(t *testing.T) {
	transport := &fakeTransport{}
	model := &scriptedModel{}
	a := newTestAgent(t, transport, model)

	assert.Empty(t, a.SelectPrompts(context.Background(), "anything"))
	assert.Empty(t, model.requests)
}

func TestSelectPromptsFiltersAndDefaults(t *testing.T) {
	transport := &fakeTransport{
		prompts: []*mcp.Prompt{
			{Name: "calculation-helper", Description: "Guides arithmetic"},
			{Name: "step-by-step-math"},
		},
	}
	model := &scriptedModel{responses: []*chat.Response{
		selectionResponse(`Here you go:
[
  {"name": "calculation-helper", "arguments": {"operation": "addition"}},
  {"name": "step-by-step-math"},
  {"name": "invented-prompt", "arguments": {}},
  {"arguments": {"orphan": true}}
]`),
	}}
	a := newTestAgent(t, transport, model)

	selected := a.SelectPrompts(context.Background(), "what is 2+2?")
	require.Len(t, selected, 2)

	assert.Equal(t, "calculation-helper", selected[0].Name)
	assert.Equal(t, map[string]any{"operation": "addition"}, selected[0].Arguments)

	// Missing arguments default to an empty, non-nil map.
	assert.Equal(t, "step-by-step-math", selected[1].Name)
	require.NotNil(t, selected[1].Arguments)
	assert.Empty(t, selected[1].Arguments)
}

func TestSelectPromptsMalformedResponse(t *testing.T) {
	transport := &fakeTransport{
		prompts: []*mcp.Prompt{{Name: "calculation-helper"}},
	}
	model := &scriptedModel{responses: []*chat.Response{
		selectionResponse(`{"name": "calculation-helper"`),
	}}
	a := newTestAgent(t, transport, model)

	assert.Empty(t, a.SelectPrompts(context.Background(), "question"))
}

func TestDecodeJSONArray(t *testing.T) {
	var names []string
	err := decodeJSONArray(`The answer is ["a", "b"] as requested.`, &names)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	err = decodeJSONArray("no array here", &names)
	assert.Error(t, err)

	err = decodeJSONArray("] backwards [", &names)
	assert.Error(t, err)
}
