package llm

import (
	"context"
	"fmt"
)

// FallbackClient is the stub backend used when the configured adapter cannot
// be constructed or fails its connection check. Runs proceed and produce
// structurally valid results instead of aborting; every response is an
// obviously canned placeholder so scores read as "nothing probed".
type FallbackClient struct {
	modelID string
}

func NewFallbackClient(modelID string) *FallbackClient {
	return &FallbackClient{modelID: modelID}
}

// Generate implements the ModelClient interface
func (f *FallbackClient) Generate(_ context.Context, prompt string, _ GenerationParams) (string, error) {
	return fmt.Sprintf("Test response for prompt: %.50s", prompt), nil
}

// Chat implements the ModelClient interface
func (f *FallbackClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if len(messages) == 0 {
		return f.Generate(ctx, "", params)
	}
	return f.Generate(ctx, messages[len(messages)-1].Content, params)
}

// ValidateConnection implements the ModelClient interface
func (f *FallbackClient) ValidateConnection(_ context.Context) error {
	return nil
}
