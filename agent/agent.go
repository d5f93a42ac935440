package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/parkerduff/assistant/chat"
	"github.com/parkerduff/assistant/errors"
	"github.com/parkerduff/assistant/llm"
)

// Transport is the connection to the MCP server as consumed by the agent.
// Implemented by mcpclient.Client; faked in tests.
type Transport interface {
	ListTools(ctx context.Context) ([]chat.ToolSpec, error)
	ListResources(ctx context.Context) ([]*mcp.Resource, error)
	ListPrompts(ctx context.Context) ([]*mcp.Prompt, error)
	ListResourceTemplates(ctx context.Context) ([]*mcp.ResourceTemplate, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) ([]string, error)
	ReadResource(ctx context.Context, uri string) ([]*mcp.ResourceContents, error)
	GetPrompt(ctx context.Context, name string, arguments map[string]string) ([]*mcp.PromptMessage, error)
}

// Options configures an Agent.
type Options struct {
	// MaxTokens bounds the model output of the main conversation calls.
	MaxTokens int64
	// HiddenResources and HiddenPrompts are doublestar globs; catalog
	// entries whose names match are excluded from selection.
	HiddenResources []string
	HiddenPrompts   []string
	Logger          *slog.Logger
}

// Agent orchestrates one conversation session: it selects and loads context
// from the MCP server, then drives the tool-use loop against the model until
// a final text answer. Conversation history lives only for the duration of a
// single query.
type Agent struct {
	transport Transport
	llm       llm.Client
	maxTokens int64
	logger    *slog.Logger

	hiddenResources []string
	hiddenPrompts   []string

	tools     []chat.ToolSpec
	resources map[string]*mcp.Resource
	prompts   map[string]*mcp.Prompt
}

// New creates an Agent over a connected transport and a chat client.
func New(transport Transport, client llm.Client, opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Agent{
		transport:       transport,
		llm:             client,
		maxTokens:       maxTokens,
		logger:          logger,
		hiddenResources: opts.HiddenResources,
		hiddenPrompts:   opts.HiddenPrompts,
		resources:       map[string]*mcp.Resource{},
		prompts:         map[string]*mcp.Prompt{},
	}
}

// Answer runs one full query cycle: context selection and loading, then the
// tool-use loop, returning the model's final text answer. Selection and
// loading failures degrade to less context; a failed main model call is
// fatal to the cycle.
func (a *Agent) Answer(ctx context.Context, query string) (string, error) {
	selectedResources := a.SelectResources(ctx, query)
	selectedPrompts := a.SelectPrompts(ctx, query)

	contextBlocks := a.LoadResources(ctx, selectedResources)
	instructions := a.LoadPrompts(ctx, selectedPrompts)

	content := append([]chat.Block{chat.TextBlock(query)}, contextBlocks...)
	conversation := []chat.Message{chat.UserMessage(content...)}

	for {
		outcome, next, err := a.turn(ctx, conversation, instructions)
		if err != nil {
			return "", err
		}
		conversation = next
		if outcome.done {
			return outcome.answer, nil
		}
	}
}

// turnOutcome is the typed loop-control result of one model turn: either the
// loop continues with tool results appended, or it is done with an answer.
type turnOutcome struct {
	done   bool
	answer string
}

// turn performs one iteration of the tool-use loop: call the model, append
// its response, and either execute the requested tools or extract the final
// answer.
func (a *Agent) turn(ctx context.Context, conversation []chat.Message, instructions string) (turnOutcome, []chat.Message, error) {
	resp, err := a.llm.Chat(ctx, &chat.Request{
		System:    instructions,
		Messages:  conversation,
		Tools:     a.tools,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return turnOutcome{}, conversation, errors.Wrapf(err, "model call failed")
	}

	conversation = append(conversation, chat.Message{Role: chat.RoleAssistant, Content: resp.Content})

	if resp.StopReason == chat.StopToolUse {
		results, err := a.executeTools(ctx, resp.ToolUses())
		if err != nil {
			return turnOutcome{}, conversation, err
		}
		conversation = append(conversation, chat.UserMessage(results...))
		return turnOutcome{}, conversation, nil
	}

	answer := resp.FirstText()
	if answer == "" {
		answer = "[No text response available]"
	}
	return turnOutcome{done: true, answer: answer}, conversation, nil
}

// executeTools runs the requested tool invocations sequentially, in request
// order, and returns one result block per request with matching correlation
// ids. Tool failures are folded into error-flagged result blocks so the model
// can react; only a dead transport aborts the cycle.
func (a *Agent) executeTools(ctx context.Context, uses []chat.Block) ([]chat.Block, error) {
	results := make([]chat.Block, 0, len(uses))
	for _, use := range uses {
		parts, err := a.transport.CallTool(ctx, use.ToolName, use.Args)
		if err != nil {
			if errors.Is(err, errors.ErrNotConnected) {
				return nil, err
			}
			a.logger.Warn("tool invocation failed", "tool", use.ToolName, "error", err)
			results = append(results, chat.ToolResultBlock(use.ID, use.ToolName, err.Error(), true))
			continue
		}
		results = append(results, chat.ToolResultBlock(use.ID, use.ToolName, strings.Join(parts, "\n"), false))
	}
	return results, nil
}
