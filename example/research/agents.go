// Package research is a runnable example: a fan-out/fan-in research
// pipeline over mock agents.
package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/sicko7947/agentflow"
)

// NewRegistry builds the example's agent registry with mock agents.
func NewRegistry() *agentflow.Registry {
	registry := agentflow.NewRegistry()

	registry.RegisterFunc("searcher", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		topic, _ := inputs["topic"].(string)
		if topic == "" {
			return nil, fmt.Errorf("empty topic")
		}
		return map[string]any{
			"sources": []any{
				"https://example.com/" + strings.ReplaceAll(topic, " ", "-"),
				"https://example.org/" + strings.ReplaceAll(topic, " ", "_"),
			},
		}, nil
	})

	registry.RegisterFunc("summarizer", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		sources, _ := inputs["sources"].([]any)
		return map[string]any{
			"summary": fmt.Sprintf("summary of %d sources", len(sources)),
		}, nil
	})

	registry.RegisterFunc("critic", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		sources, _ := inputs["sources"].([]any)
		score := 0.5
		if len(sources) > 1 {
			score = 0.9
		}
		return map[string]any{"confidence": score}, nil
	})

	registry.RegisterFunc("writer", func(ctx context.Context, action string, inputs map[string]any) (map[string]any, error) {
		summary, _ := inputs["summary"].(string)
		report := fmt.Sprintf("# Report\n\n%s\n", summary)
		if confidence, ok := inputs["confidence"].(float64); ok {
			report += fmt.Sprintf("\nconfidence: %.2f\n", confidence)
		}
		return map[string]any{"report": report}, nil
	})

	return registry
}
