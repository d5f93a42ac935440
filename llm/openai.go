package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// OpenAIClient is a client for the OpenAI Chat Completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAIClient. It requires the OPENAI_API_KEY
// environment variable to be set. It also supports OPENAI_BASE_URL for custom
// API endpoints.
func NewOpenAIClient(ctx context.Context, modelName string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	return &OpenAIClient{client: &c, model: modelName}, nil
}

// Chat sends a chat request to OpenAI and converts the response into the
// internal response format.
func (o *OpenAIClient) Chat(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            convertMessagesToOpenAI(req),
		MaxCompletionTokens: openai.Int(req.MaxTokens),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertToolsToOpenAI(req.Tools)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}

	return processOpenAIResponse(resp)
}

// convertMessagesToOpenAI converts the internal conversation to OpenAI chat
// messages. System instructions become a leading system message; tool result
// blocks become one tool message each, keyed by call id.
func convertMessagesToOpenAI(req *chat.Request) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		chatMessages = append(chatMessages, openai.SystemMessage(req.System))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleAssistant:
			assistantMessage := openai.ChatCompletionMessage{Role: "assistant"}
			var toolCalls []openai.ChatCompletionMessageToolCallUnion
			for _, block := range msg.Content {
				switch block.Type {
				case chat.BlockText:
					assistantMessage.Content += block.Text
				case chat.BlockToolUse:
					argsBytes, err := json.Marshal(block.Args)
					if err != nil {
						slog.Warn("could not marshal tool call arguments, skipping call in history",
							"tool", block.ToolName, "error", err)
						continue
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnion{
						ID:   block.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageFunctionToolCallFunction{
							Name:      block.ToolName,
							Arguments: string(argsBytes),
						},
					})
				default:
					slog.Warn("unsupported assistant block for OpenAI, skipping", "type", block.Type)
				}
			}
			assistantMessage.ToolCalls = toolCalls
			chatMessages = append(chatMessages, assistantMessage.ToParam())

		case chat.RoleUser:
			var parts []openai.ChatCompletionContentPartUnionParam
			for _, block := range msg.Content {
				switch block.Type {
				case chat.BlockText:
					parts = append(parts, openai.TextContentPart(block.Text))
				case chat.BlockImage:
					dataURL := fmt.Sprintf("data:%s;base64,%s", block.MediaType, block.Data)
					parts = append(parts, openai.ImageContentPart(
						openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}))
				case chat.BlockToolResult:
					// OpenAI carries tool results as dedicated tool-role messages.
					chatMessages = append(chatMessages, openai.ToolMessage(block.Content, block.ID))
				default:
					slog.Warn("unsupported user block for OpenAI, skipping", "type", block.Type)
				}
			}
			if len(parts) > 0 {
				chatMessages = append(chatMessages, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfArrayOfContentParts: parts,
						},
					},
				})
			}
		}
	}
	return chatMessages
}

// convertToolsToOpenAI converts tool specs to the OpenAI function tool format.
func convertToolsToOpenAI(specs []chat.ToolSpec) []openai.ChatCompletionToolUnionParam {
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, spec := range specs {
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": map[string]any{},
		}
		if spec.InputSchema != nil {
			params = openai.FunctionParameters(spec.InputSchema)
		}
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: openai.String(spec.Description),
			Parameters:  params,
		}))
	}
	return openAITools
}

// processOpenAIResponse converts an OpenAI API response into the internal
// response format.
func processOpenAIResponse(resp *openai.ChatCompletion) (*chat.Response, error) {
	if len(resp.Choices) == 0 {
		return &chat.Response{StopReason: chat.StopOther}, nil
	}

	choice := resp.Choices[0]
	out := &chat.Response{}

	switch choice.FinishReason {
	case "tool_calls":
		out.StopReason = chat.StopToolUse
	case "stop":
		out.StopReason = chat.StopEndTurn
	default:
		out.StopReason = chat.StopOther
	}

	if choice.Message.Content != "" {
		out.Content = append(out.Content, chat.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		// Arguments arrive as a JSON string; we expect a flat argument map.
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal function call arguments from OpenAI")
		}
		out.Content = append(out.Content, chat.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	return out, nil
}
