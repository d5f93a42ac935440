package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// BedrockClient is a client for the Anthropic models on AWS Bedrock.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockClient creates a new BedrockClient.
// It requires AWS credentials to be configured in the environment.
func NewBedrockClient(ctx context.Context, modelID string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// Chat sends a chat request to an Anthropic model via AWS Bedrock.
func (b *BedrockClient) Chat(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	body, err := createBedrockRequest(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	return processBedrockResponse(resp.Body)
}

// createBedrockRequest builds the anthropic-format JSON body Bedrock expects.
func createBedrockRequest(req *chat.Request) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        req.MaxTokens,
		"messages":          convertMessagesToBedrock(req.Messages),
	}

	if req.System != "" {
		request["system"] = req.System
	}

	if len(req.Tools) > 0 {
		var tools []map[string]interface{}
		for _, spec := range req.Tools {
			schema := map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
			if spec.InputSchema != nil {
				schema = spec.InputSchema
			}
			tools = append(tools, map[string]interface{}{
				"name":         spec.Name,
				"description":  spec.Description,
				"input_schema": schema,
			})
		}
		request["tools"] = tools
		request["tool_choice"] = map[string]interface{}{"type": "auto"}
	}

	return json.Marshal(request)
}

// convertMessagesToBedrock converts the internal conversation to the
// anthropic wire shape used by Bedrock.
func convertMessagesToBedrock(messages []chat.Message) []map[string]interface{} {
	var out []map[string]interface{}
	for _, msg := range messages {
		var content []map[string]interface{}
		for _, block := range msg.Content {
			switch block.Type {
			case chat.BlockText:
				content = append(content, map[string]interface{}{
					"type": "text",
					"text": block.Text,
				})
			case chat.BlockImage:
				content = append(content, map[string]interface{}{
					"type": "image",
					"source": map[string]interface{}{
						"type":       "base64",
						"media_type": block.MediaType,
						"data":       block.Data,
					},
				})
			case chat.BlockToolUse:
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    block.ID,
					"name":  block.ToolName,
					"input": block.Args,
				})
			case chat.BlockToolResult:
				content = append(content, map[string]interface{}{
					"type":        "tool_result",
					"tool_use_id": block.ID,
					"content":     block.Content,
					"is_error":    block.IsError,
				})
			default:
				slog.Warn("unrecognized content block type, skipping", "type", block.Type)
			}
		}
		if len(content) == 0 {
			continue
		}

		role := "user"
		if msg.Role == chat.RoleAssistant {
			role = "assistant"
		}
		out = append(out, map[string]interface{}{
			"role":    role,
			"content": content,
		})
	}
	return out
}

// processBedrockResponse converts a Bedrock API response into the internal
// response format.
func processBedrockResponse(body []byte) (*chat.Response, error) {
	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	out := &chat.Response{}
	switch response["stop_reason"] {
	case "tool_use":
		out.StopReason = chat.StopToolUse
	case "end_turn":
		out.StopReason = chat.StopEndTurn
	default:
		out.StopReason = chat.StopOther
	}

	content, ok := response["content"]
	if !ok {
		return out, nil
	}
	contentArray, ok := content.([]interface{})
	if !ok {
		return nil, errors.New("unexpected content format in Bedrock response")
	}

	for _, item := range contentArray {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		itemType, ok := itemMap["type"].(string)
		if !ok {
			continue
		}

		switch itemType {
		case "text":
			if text, ok := itemMap["text"].(string); ok {
				out.Content = append(out.Content, chat.TextBlock(text))
			}
		case "tool_use":
			name, ok := itemMap["name"].(string)
			if !ok {
				continue
			}
			input, ok := itemMap["input"].(map[string]interface{})
			if !ok {
				continue
			}
			id, ok := itemMap["id"].(string)
			if !ok || id == "" {
				// Bedrock responses occasionally omit the id; synthesize one
				// so result correlation still holds.
				id = fmt.Sprintf("call_%s_%s", uuid.NewString(), name)
			}
			out.Content = append(out.Content, chat.ToolUseBlock(id, name, input))
		}
	}

	return out, nil
}
