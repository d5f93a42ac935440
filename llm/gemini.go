package llm

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
	"google.golang.org/api/option"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGeminiClient creates a new GeminiClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiClient(ctx context.Context, modelName string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	return &GeminiClient{
		model: client.GenerativeModel(modelName),
	}, nil
}

// Chat sends a chat request to the Gemini API.
func (g *GeminiClient) Chat(ctx context.Context, req *chat.Request) (*chat.Response, error) {
	history := convertMessagesToGemini(req.Messages)
	if len(history) == 0 {
		return nil, errors.New("cannot send an empty conversation to Gemini")
	}

	g.model.Tools = convertToolsToGemini(req.Tools)
	g.model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.System != "" {
		g.model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	} else {
		g.model.SystemInstruction = nil
	}

	// The last message is the new prompt; everything before it is history.
	last := history[len(history)-1]
	session := g.model.StartChat()
	session.History = history[:len(history)-1]
	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Gemini")
	}

	return processGeminiResponse(resp)
}

// convertMessagesToGemini converts the internal conversation to Gemini's
// content format.
func convertMessagesToGemini(messages []chat.Message) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range messages {
		role := "user"
		if msg.Role == chat.RoleAssistant {
			role = "model"
		}

		var parts []genai.Part
		for _, block := range msg.Content {
			switch block.Type {
			case chat.BlockText:
				parts = append(parts, genai.Text(block.Text))
			case chat.BlockImage:
				data, err := base64.StdEncoding.DecodeString(block.Data)
				if err != nil {
					slog.Warn("could not decode image payload for Gemini, skipping", "error", err)
					continue
				}
				parts = append(parts, genai.Blob{MIMEType: block.MediaType, Data: data})
			case chat.BlockToolUse:
				parts = append(parts, genai.FunctionCall{Name: block.ToolName, Args: block.Args})
			case chat.BlockToolResult:
				// Gemini correlates results by function name rather than id.
				parts = append(parts, genai.FunctionResponse{
					Name: block.ToolName,
					Response: map[string]any{
						"output":   block.Content,
						"is_error": block.IsError,
					},
				})
			default:
				slog.Warn("unrecognized content block type, skipping", "type", block.Type)
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// convertToolsToGemini converts tool specs to Gemini's FunctionDeclaration
// format.
func convertToolsToGemini(specs []chat.ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, spec := range specs {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  geminiSchema(spec.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

// geminiSchema maps a generic JSON schema onto genai.Schema. Unknown or
// missing types fall back to a generic object.
func geminiSchema(schema map[string]any) *genai.Schema {
	out := &genai.Schema{Type: genai.TypeObject}
	if schema == nil {
		return out
	}

	if t, ok := schema["type"].(string); ok {
		switch t {
		case "string":
			out.Type = genai.TypeString
		case "number":
			out.Type = genai.TypeNumber
		case "integer":
			out.Type = genai.TypeInteger
		case "boolean":
			out.Type = genai.TypeBoolean
		case "array":
			out.Type = genai.TypeArray
		case "object":
			out.Type = genai.TypeObject
		}
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = geminiSchema(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	return out
}

// processGeminiResponse converts a Gemini API response into the internal
// response format.
func processGeminiResponse(resp *genai.GenerateContentResponse) (*chat.Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("received an empty response from Gemini")
	}

	out := &chat.Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Content = append(out.Content, chat.TextBlock(string(v)))
		case genai.FunctionCall:
			// Gemini does not assign call ids; synthesize one so results can
			// still be correlated downstream.
			id := "call_" + uuid.NewString()
			out.Content = append(out.Content, chat.ToolUseBlock(id, v.Name, v.Args))
		default:
			return nil, errors.New("unsupported part type in Gemini response: %T", v)
		}
	}

	if len(out.ToolUses()) > 0 {
		out.StopReason = chat.StopToolUse
	} else if resp.Candidates[0].FinishReason == genai.FinishReasonStop {
		out.StopReason = chat.StopEndTurn
	} else {
		out.StopReason = chat.StopOther
	}

	return out, nil
}
