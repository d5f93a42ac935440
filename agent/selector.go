package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
)

// Relevance judgment is delegated to the model itself rather than keyword
// matching, so the answers come back as free-form text wrapped around a JSON
// array. The parser tolerates surrounding prose by decoding only the
// substring between the first '[' and the last ']'.

// selectionMaxTokens bounds the output of selection calls; the expected
// answer is a short JSON array.
const selectionMaxTokens = 200

const resourceSelectionPrompt = `Given this user question: %q

And these available resources:
%s

Which resources (if any) would be helpful to answer the user's question?
Return a JSON array of resource names, or an empty array if no resources
are needed. Only include resources that are directly relevant.

Example: ["math-constants"] or []
`

const promptSelectionPrompt = `Given this user question: %q

And these available prompt templates:
%s

Which prompts (if any) would provide helpful instructions or guidance for
answering this question? Return a JSON array of objects, each with a "name"
(string) and "arguments" (an object mapping parameter names to values), or
an empty array if no prompts are needed. Only include prompts that are
directly relevant.

Example: [{"name": "calculation-helper", "arguments": {"operation": "addition"}}, {"name": "step-by-step-math", "arguments": {}}] or []
`

// PromptSelection pairs a prompt name with the argument values the model
// chose for it.
type PromptSelection struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// SelectResources asks the model which catalog resources are relevant to the
// query. The result only ever contains names present in the current catalog,
// in the order the model proposed them. Any failure degrades to an empty
// selection; no error is surfaced.
func (a *Agent) SelectResources(ctx context.Context, query string) []string {
	if len(a.resources) == 0 {
		return nil
	}

	descriptions := make(map[string]string, len(a.resources))
	for name, res := range a.resources {
		desc := res.Description
		if desc == "" {
			desc = "Resource: " + name
		}
		descriptions[name] = desc
	}
	payload, err := json.MarshalIndent(descriptions, "", "  ")
	if err != nil {
		a.logger.Warn("failed to marshal resource descriptions", "error", err)
		return nil
	}

	raw, err := a.selectionCall(ctx, fmt.Sprintf(resourceSelectionPrompt, query, payload))
	if err != nil {
		a.logger.Warn("failed to select resources with LLM", "error", err)
		return nil
	}

	var proposed []string
	if err := decodeJSONArray(raw, &proposed); err != nil {
		a.logger.Warn("unparseable resource selection response", "error", err)
		return nil
	}

	var selected []string
	for _, name := range proposed {
		if _, ok := a.resources[name]; ok {
			selected = append(selected, name)
		}
	}
	return selected
}

// SelectPrompts asks the model which prompt templates are relevant to the
// query and with which arguments. Same shape and failure policy as
// SelectResources: unknown names are dropped, malformed entries are dropped,
// missing arguments default to an empty map.
func (a *Agent) SelectPrompts(ctx context.Context, query string) []PromptSelection {
	if len(a.prompts) == 0 {
		return nil
	}

	names := make([]string, 0, len(a.prompts))
	for name := range a.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	catalog := make([]*mcp.Prompt, 0, len(names))
	for _, name := range names {
		catalog = append(catalog, a.prompts[name])
	}
	payload, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		a.logger.Warn("failed to marshal prompt catalog", "error", err)
		return nil
	}

	raw, err := a.selectionCall(ctx, fmt.Sprintf(promptSelectionPrompt, query, payload))
	if err != nil {
		a.logger.Warn("failed to select prompts with LLM", "error", err)
		return nil
	}

	var proposed []PromptSelection
	if err := decodeJSONArray(raw, &proposed); err != nil {
		a.logger.Warn("unparseable prompt selection response", "error", err)
		return nil
	}

	var selected []PromptSelection
	for _, sel := range proposed {
		if sel.Name == "" {
			continue
		}
		if _, ok := a.prompts[sel.Name]; !ok {
			continue
		}
		if sel.Arguments == nil {
			sel.Arguments = map[string]any{}
		}
		selected = append(selected, sel)
	}
	return selected
}

// selectionCall performs a bounded single-message model call and returns the
// trimmed text of the response. No tools are offered.
func (a *Agent) selectionCall(ctx context.Context, prompt string) (string, error) {
	resp, err := a.llm.Chat(ctx, &chat.Request{
		Messages:  []chat.Message{chat.UserMessage(chat.TextBlock(prompt))},
		MaxTokens: selectionMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.JoinedText()), nil
}

// decodeJSONArray decodes the substring between the first '[' and the last
// ']' of raw into dest, ignoring any commentary around it.
func decodeJSONArray(raw string, dest any) error {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return errors.New("no JSON array found in response")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), dest)
}
