package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new AnthropicClient.
// It requires the ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context, modelName string) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicClient{
		client: &client,
		model:  modelName,
	}, nil
}

// Chat sends a chat request to the Anthropic API.
func (a *AnthropicClient) Chat(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: req.MaxTokens,
		Messages:  convertMessagesToAnthropic(req.Messages),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = make([]anthropic.ToolUnionParam, len(req.Tools))
		for i, spec := range req.Tools {
			tool := anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropicInputSchema(spec.InputSchema),
			}
			params.Tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
		}
		// The model decides whether to invoke a tool.
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}

	return processAnthropicResponse(resp)
}

// convertMessagesToAnthropic converts the internal message format to Anthropic's.
func convertMessagesToAnthropic(messages []chat.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch block.Type {
			case chat.BlockText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case chat.BlockImage:
				content = append(content, anthropic.NewImageBlockBase64(block.MediaType, block.Data))
			case chat.BlockToolUse:
				input, err := json.Marshal(block.Args)
				if err != nil {
					slog.Warn("could not marshal tool call arguments, skipping block",
						"tool", block.ToolName, "error", err)
					continue
				}
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    block.ID,
						Name:  block.ToolName,
						Input: input,
					}})
			case chat.BlockToolResult:
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: block.ID,
						IsError:   anthropic.Bool(block.IsError),
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{
								Text: block.Content,
							},
						}},
					}})
			default:
				slog.Warn("unrecognized content block type, skipping", "type", block.Type)
			}
		}
		if len(content) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == chat.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: content})
	}
	return out
}

// anthropicInputSchema maps a generic JSON schema onto Anthropic's tool
// input schema parameter.
func anthropicInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	out := anthropic.ToolInputSchemaParam{
		Properties: map[string]interface{}{},
	}
	if schema == nil {
		return out
	}
	if props, ok := schema["properties"]; ok {
		out.Properties = props
	}
	return out
}

// processAnthropicResponse converts an Anthropic API response into the
// internal response format.
func processAnthropicResponse(resp *anthropic.Message) (*chat.Response, error) {
	out := &chat.Response{}

	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		out.StopReason = chat.StopToolUse
	case anthropic.StopReasonEndTurn:
		out.StopReason = chat.StopEndTurn
	default:
		out.StopReason = chat.StopOther
	}

	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content = append(out.Content, chat.TextBlock(c.Text))
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal(c.Input, &args); err != nil {
				return nil, errors.Wrapf(err, "failed to unmarshal tool call input")
			}
			out.Content = append(out.Content, chat.ToolUseBlock(c.ID, c.Name, args))
		}
	}

	return out, nil
}
