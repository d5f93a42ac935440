// Package agent implements the conversation orchestration at the heart of
// the assistant.
//
// A session holds two external collaborators: a chat-completion model
// (llm.Client) and one MCP server connection (Transport). For each user
// query the agent:
//
//   - asks the model which catalog resources and prompt templates are
//     relevant to the query (selector.go),
//   - fetches the chosen resources into conversation blocks and renders the
//     chosen prompts into system instructions (loader.go),
//   - runs the tool-use loop: call the model with the conversation and the
//     server's tool catalog, execute any requested tools against the server,
//     feed the results back, and repeat until the model answers in plain
//     text (agent.go).
//
// The resource and prompt catalogs are cached snapshots, replaced wholesale
// by Refresh (catalog.go). Snapshots are the only authority for validating
// model-proposed selections: names not present in the snapshot are silently
// dropped, so hallucinated selections never reach the server.
//
// Failure handling distinguishes advisory from mandatory steps. Selection
// and loading are advisory: any failure there degrades to less context and
// is only logged. The main model call and the transport connection are
// mandatory: their failures abort the current query and propagate to the
// caller. Tool invocation failures sit in between - they are folded into the
// conversation as error-flagged tool results so the model can react.
//
// The terminal subpackage provides the interactive command-line front end.
package agent
