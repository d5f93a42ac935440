package llm

import (
	"testing"

	"github.com/openai/openai-go/v2"
	"github.com/parkerduff/assistant/chat"
)

func TestConvertMessagesToOpenAI(t *testing.T) {
	messages := convertMessagesToOpenAI(&chat.Request{
		System:   "Be concise.",
		Messages: sampleConversation(),
	})

	// system, user (text+image), assistant, tool
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if messages[0].OfSystem == nil {
		t.Error("expected leading system message")
	}
	if messages[1].OfUser == nil {
		t.Fatal("expected user message second")
	}
	parts := messages[1].OfUser.Content.OfArrayOfContentParts
	if len(parts) != 2 {
		t.Errorf("expected 2 content parts in user message, got %d", len(parts))
	}

	if messages[2].OfAssistant == nil {
		t.Fatal("expected assistant message third")
	}
	calls := messages[2].OfAssistant.ToolCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}

	if messages[3].OfTool == nil {
		t.Fatal("expected tool message last")
	}
	if messages[3].OfTool.ToolCallID != "call_1" {
		t.Errorf("expected tool message for call_1, got %q", messages[3].OfTool.ToolCallID)
	}
}

func TestConvertMessagesToOpenAIWithoutSystem(t *testing.T) {
	messages := convertMessagesToOpenAI(&chat.Request{
		Messages: []chat.Message{chat.UserMessage(chat.TextBlock("hi"))},
	})
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].OfUser == nil {
		t.Error("expected a user message")
	}
}

func TestConvertToolsToOpenAI(t *testing.T) {
	tools := convertToolsToOpenAI([]chat.ToolSpec{
		{
			Name:        "add",
			Description: "Adds two numbers",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "number"}},
			},
		},
		{Name: "noop"},
	})
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	add := tools[0].OfFunction
	if add == nil {
		t.Fatal("expected a function tool")
	}
	if add.Function.Name != "add" {
		t.Errorf("unexpected tool name: %q", add.Function.Name)
	}
	if _, ok := add.Function.Parameters["properties"]; !ok {
		t.Errorf("tool schema lost its properties: %v", add.Function.Parameters)
	}

	// A tool without a schema still gets a valid empty object schema.
	noop := tools[1].OfFunction
	if noop.Function.Parameters["type"] != "object" {
		t.Errorf("expected default object schema, got %v", noop.Function.Parameters)
	}
}

func TestProcessOpenAIResponse(t *testing.T) {
	resp, err := processOpenAIResponse(&openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				Content: "Calculating.",
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID:   "call_1",
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      "add",
						Arguments: `{"a": 2, "b": 2}`,
					},
				}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("processOpenAIResponse failed: %v", err)
	}
	if resp.StopReason != chat.StopToolUse {
		t.Errorf("expected StopToolUse, got %v", resp.StopReason)
	}
	uses := resp.ToolUses()
	if len(uses) != 1 {
		t.Fatalf("expected 1 tool use, got %d", len(uses))
	}
	if uses[0].ID != "call_1" || uses[0].ToolName != "add" {
		t.Errorf("unexpected tool use: %+v", uses[0])
	}
	if uses[0].Args["a"] != float64(2) {
		t.Errorf("unexpected tool arguments: %v", uses[0].Args)
	}
}

func TestProcessOpenAIResponseStop(t *testing.T) {
	resp, err := processOpenAIResponse(&openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "stop",
			Message:      openai.ChatCompletionMessage{Content: "4"},
		}},
	})
	if err != nil {
		t.Fatalf("processOpenAIResponse failed: %v", err)
	}
	if resp.StopReason != chat.StopEndTurn {
		t.Errorf("expected StopEndTurn, got %v", resp.StopReason)
	}
	if resp.FirstText() != "4" {
		t.Errorf("expected text '4', got %q", resp.FirstText())
	}
}

func TestProcessOpenAIResponseNoChoices(t *testing.T) {
	resp, err := processOpenAIResponse(&openai.ChatCompletion{})
	if err != nil {
		t.Fatalf("processOpenAIResponse failed: %v", err)
	}
	if resp.StopReason != chat.StopOther {
		t.Errorf("expected StopOther for empty choices, got %v", resp.StopReason)
	}

	if _, err := processOpenAIResponse(&openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "tool_calls",
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID:       "call_1",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{Name: "add", Arguments: "{broken"},
				}},
			},
		}},
	}); err == nil {
		t.Error("expected an error for malformed tool arguments")
	}
}
