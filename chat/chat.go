// Package chat defines the provider-neutral conversation model shared by the
// agent and the LLM clients. A conversation is an ordered list of messages,
// and each message is an ordered list of content blocks. Blocks form a closed
// union discriminated by Type; consumers must switch exhaustively and reject
// unknown tags.
package chat

// BlockType discriminates the members of the Block union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one unit of message content. Only the fields for the tagged
// variant are populated; use the constructors below.
type Block struct {
	Type BlockType

	// BlockText
	Text string

	// BlockImage
	MediaType string
	Data      string // base64-encoded payload

	// BlockToolUse and BlockToolResult: correlation id assigned by the model.
	ID string

	// BlockToolUse
	ToolName string
	Args     map[string]any

	// BlockToolResult
	Content string
	IsError bool
}

// TextBlock returns a text content block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ImageBlock returns an image content block carrying a base64-encoded payload.
func ImageBlock(mediaType, data string) Block {
	return Block{Type: BlockImage, MediaType: mediaType, Data: data}
}

// ToolUseBlock returns a tool invocation request block.
func ToolUseBlock(id, name string, args map[string]any) Block {
	return Block{Type: BlockToolUse, ID: id, ToolName: name, Args: args}
}

// ToolResultBlock returns a tool result block correlated to a prior
// invocation request by id.
func ToolResultBlock(id, name, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ID: id, ToolName: name, Content: content, IsError: isError}
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role
	Content []Block
}

// UserMessage builds a user turn from the given blocks.
func UserMessage(blocks ...Block) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// AssistantMessage builds an assistant turn from the given blocks.
func AssistantMessage(blocks ...Block) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolSpec describes one remotely-invocable tool offered to the model.
// InputSchema is the tool's JSON schema as a generic map.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// StopReason classifies why the model stopped generating.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
	StopOther   StopReason = "other"
)

// Request is one stateless chat completion call.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int64
}

// Response is the model's reply to a Request.
type Response struct {
	StopReason StopReason
	Content    []Block
}

// FirstText returns the first non-empty text block in the response, or ""
// if there is none.
func (r *Response) FirstText() string {
	for _, b := range r.Content {
		if b.Type == BlockText && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// JoinedText returns all text block content concatenated in order.
func (r *Response) JoinedText() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the tool invocation request blocks in response order.
func (r *Response) ToolUses() []Block {
	var uses []Block
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			uses = append(uses, b)
		}
	}
	return uses
}
