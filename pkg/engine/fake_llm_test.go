package engine

import (
	"context"
	"strings"

	"github.com/flowforge/orchestrator/pkg/llmclient"
)

// fakeLLM is a scripted llmclient.Client: each call's StepID is matched
// against a set of canned responses, falling back to a default. Modeled
// on the teacher's preference for hand-written fakes over a mocking
// framework for narrow interfaces like this one.
type fakeLLM struct {
	// responses maps a StepID substring to the text the fake returns.
	responses map[string]string
	// defaultResponse is returned when no key in responses matches.
	defaultResponse string
	calls           []string
}

func newFakeLLM(defaultResponse string) *fakeLLM {
	return &fakeLLM{responses: make(map[string]string), defaultResponse: defaultResponse}
}

func (f *fakeLLM) on(stepIDSubstr, response string) *fakeLLM {
	f.responses[stepIDSubstr] = response
	return f
}

func (f *fakeLLM) Generate(ctx context.Context, input *llmclient.GenerateInput) (<-chan llmclient.Chunk, error) {
	f.calls = append(f.calls, input.StepID)

	text := f.defaultResponse
	for substr, resp := range f.responses {
		if strings.Contains(input.StepID, substr) {
			text = resp
			break
		}
	}

	ch := make(chan llmclient.Chunk, 1)
	ch <- &llmclient.TextChunk{Content: text}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) Close() error { return nil }
