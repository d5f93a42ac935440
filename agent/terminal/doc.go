// Package terminal implements the interactive command-line session for the
// assistant.
//
// It reads user lines from an input stream, routes them to the agent, and
// writes the answers back out. Two lines are treated as commands rather than
// questions: "goodbye" ends the session, and "refresh" reloads the server's
// resource and prompt catalogs so later questions see the current state.
// Everything else is answered with a full query cycle against the agent.
//
// Errors from a single question are printed and the session continues; only
// end of input or an explicit goodbye terminates the loop.
package terminal
