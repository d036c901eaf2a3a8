package events

import (
	"context"
	"strings"

	"github.com/flowforge/orchestrator/pkg/config"
	"github.com/flowforge/orchestrator/pkg/llmclient"
	"github.com/flowforge/orchestrator/pkg/mcp"
)

// formatterFilterThreshold is the raw-content length above which the
// formatter prompt asks the LLM to keep only the 10-15 most relevant
// fields, per §4.G.
const formatterFilterThreshold = 3000

// Formatter turns a raw tool result (or full execution history, for the
// final summary) into Markdown, via either a streaming or a buffered LLM
// call. Both call shapes are kept as distinct methods per §9's design
// note ("keep this distinction in the interface so implementations can
// back each with the cheapest transport").
type Formatter struct {
	llm llmclient.Client
	cfg *config.LLMProviderConfig
}

// NewFormatter creates a Formatter backed by the given LLM client and
// provider config.
func NewFormatter(llm llmclient.Client, cfg *config.LLMProviderConfig) *Formatter {
	return &Formatter{llm: llm, cfg: cfg}
}

// StreamFormat converts raw into Markdown, invoking emit once per streamed
// chunk as it arrives. The concatenation of every chunk passed to emit is
// the authoritative formatted string and is also the return value — per
// §4.G, "the concatenation of streamed chunks is the authoritative
// formatted string used for persistence". On any LLM failure it falls
// back to emitting the raw text unchanged (§7's LLM-failure default:
// "emit raw JSON for formatting, and continue").
func (f *Formatter) StreamFormat(ctx context.Context, raw string) (string, error) {
	return f.stream(ctx, raw, nil)
}

// StreamFormatChunks is StreamFormat with an emit callback for incremental
// delivery (the engine wraps chunks into step_result_chunk/summary_chunk
// events as they arrive).
func (f *Formatter) StreamFormatChunks(ctx context.Context, raw string, emit func(delta string)) (string, error) {
	return f.stream(ctx, raw, emit)
}

func (f *Formatter) stream(ctx context.Context, raw string, emit func(delta string)) (string, error) {
	prompt := buildFormatPrompt(raw)

	ch, err := f.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "formatter",
		Config:   f.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: prompt}},
	})
	if err != nil {
		return raw, nil
	}

	var out strings.Builder
	for chunk := range ch {
		text, ok := chunk.(*llmclient.TextChunk)
		if !ok {
			continue
		}
		out.WriteString(text.Content)
		if emit != nil {
			emit(text.Content)
		}
	}

	if out.Len() == 0 {
		return raw, nil
	}
	return out.String(), nil
}

// Format is the non-streaming variant producing the same string in one
// call, used for the final summary per §4.G.
func (f *Formatter) Format(ctx context.Context, raw string) (string, error) {
	ch, err := f.llm.Generate(ctx, &llmclient.GenerateInput{
		StepID:   "formatter-summary",
		Config:   f.cfg,
		Messages: []llmclient.Message{{Role: llmclient.RoleUser, Content: buildFormatPrompt(raw)}},
	})
	if err != nil {
		return raw, nil
	}

	text, _, err := llmclient.Drain(ch)
	if err != nil || text == "" {
		return raw, nil
	}
	return text, nil
}

func buildFormatPrompt(raw string) string {
	content := mcp.TruncateForSummarization(raw)

	var b strings.Builder
	b.WriteString("Convert the following tool output into clean, readable Markdown " +
		"suitable for a user-facing timeline entry. Use headings, lists, and " +
		"tables where they help; do not invent data that is not present.\n")
	if len(content) > formatterFilterThreshold {
		b.WriteString("The payload is large: keep only the 10-15 fields most " +
			"relevant to the user and drop verbose low-signal fields (hashes, " +
			"bloom filters, internal IDs, pagination cursors).\n")
	}
	b.WriteString("\nRaw output:\n```\n" + content + "\n```\n")
	return b.String()
}
