package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/chat"
)

// imageMediaTypes are the binary resource kinds rendered as image blocks.
var imageMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// LoadResources fetches the named resources, in order, and renders their
// content parts into conversation blocks: text parts become tagged text
// blocks, recognized image types become image blocks, anything else is
// skipped with a warning. A failed fetch skips that resource and continues
// with the rest.
func (a *Agent) LoadResources(ctx context.Context, names []string) []chat.Block {
	var blocks []chat.Block
	for _, name := range names {
		res, ok := a.resources[name]
		if !ok {
			continue
		}

		contents, err := a.transport.ReadResource(ctx, res.URI)
		if err != nil {
			a.logger.Warn("failed to load resource", "resource", name, "error", err)
			continue
		}

		for _, content := range contents {
			if content == nil {
				continue
			}
			switch {
			case len(content.Blob) == 0:
				blocks = append(blocks, chat.TextBlock(fmt.Sprintf("[Resource: %s]\n%s", name, content.Text)))
			case imageMediaTypes[content.MIMEType]:
				blocks = append(blocks, chat.ImageBlock(content.MIMEType,
					base64.StdEncoding.EncodeToString(content.Blob)))
			default:
				a.logger.Warn("unable to process resource content",
					"resource", name, "mimeType", content.MIMEType)
			}
		}
	}
	return blocks
}

// LoadPrompts renders the selected prompt templates, in order, into a single
// system-instructions string. Each prompt's message texts are concatenated,
// trimmed, and tagged; tagged sections are joined with blank lines. A failed
// render skips that prompt and continues with the rest.
func (a *Agent) LoadPrompts(ctx context.Context, selections []PromptSelection) string {
	var instructions []string
	for _, sel := range selections {
		if _, ok := a.prompts[sel.Name]; !ok {
			continue
		}

		messages, err := a.transport.GetPrompt(ctx, sel.Name, stringifyArguments(sel.Arguments))
		if err != nil {
			a.logger.Warn("failed to load prompt", "prompt", sel.Name, "error", err)
			continue
		}

		var text strings.Builder
		for _, message := range messages {
			if message == nil {
				continue
			}
			// Messages without text content carry nothing usable as
			// instructions and are skipped.
			if tc, ok := message.Content.(*mcp.TextContent); ok {
				text.WriteString(tc.Text)
				text.WriteString("\n")
			}
		}

		rendered := strings.TrimSpace(text.String())
		if rendered != "" {
			instructions = append(instructions, fmt.Sprintf("[Prompt: %s]\n%s", sel.Name, rendered))
		}
	}
	return strings.Join(instructions, "\n\n")
}

// stringifyArguments converts model-chosen argument values to the string map
// the prompt API expects. Non-string values are JSON-encoded.
func stringifyArguments(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for key, value := range args {
		switch v := value.(type) {
		case string:
			out[key] = v
		default:
			if raw, err := json.Marshal(value); err == nil {
				out[key] = string(raw)
			} else {
				out[key] = fmt.Sprint(value)
			}
		}
	}
	return out
}
