package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/parkerduff/assistant/agent"
)

// Terminal handles the interactive CLI session for the agent.
type Terminal struct {
	agent *agent.Agent
	in    io.Reader
	out   io.Writer
}

// New creates a Terminal reading user input from in and writing responses
// to out.
func New(a *agent.Agent, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		agent: a,
		in:    in,
		out:   out,
	}
}

// Run starts the interactive session and blocks until the user says goodbye
// or input ends. Each non-command line is answered in a full query cycle;
// "refresh" reloads the catalogs without a model call.
func (t *Terminal) Run(ctx context.Context) error {
	fmt.Fprintln(t.out, "Welcome to your AI Assistant. Type 'goodbye' to quit or 'refresh' to reload available resources.")
	fmt.Fprintf(t.out, "Loaded %d resources and %d prompts\n", t.agent.ResourceCount(), t.agent.PromptCount())

	scanner := bufio.NewScanner(t.in)
	for {
		fmt.Fprint(t.out, "You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}

		switch strings.ToLower(userInput) {
		case "goodbye":
			fmt.Fprintln(t.out, "AI Assistant: Goodbye!")
			return nil
		case "refresh":
			if err := t.agent.Refresh(ctx); err != nil {
				fmt.Fprintf(t.out, "Error refreshing catalogs: %v\n", err)
				continue
			}
			fmt.Fprintf(t.out, "Loaded %d resources and %d prompts\n", t.agent.ResourceCount(), t.agent.PromptCount())
			continue
		}

		answer, err := t.agent.Answer(ctx, userInput)
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(t.out, "Assistant: %s\n", answer)
	}

	return scanner.Err()
}
