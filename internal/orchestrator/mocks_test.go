package orchestrator

import (
	"context"
	"strings"
	"sync"
)

// --- stageClient ---

// stageClient is a scripted provider: it picks a canned response by
// recognizing which specialist's system prompt it was handed. Repeated
// calls for the same stage walk the response list, sticking on the last
// entry.
type stageClient struct {
	mu        sync.Mutex
	responses map[string][]string // stage -> response sequence
	counts    map[string]int
}

func newStageClient() *stageClient {
	return &stageClient{
		responses: make(map[string][]string),
		counts:    make(map[string]int),
	}
}

func (c *stageClient) respond(stage string, responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[stage] = responses
}

func (c *stageClient) callCount(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[stage]
}

func stageFor(systemPrompt string) string {
	switch {
	case strings.Contains(systemPrompt, "content specialist"):
		return "content"
	case strings.Contains(systemPrompt, "design specialist"):
		return "design"
	case strings.Contains(systemPrompt, "quality validation"):
		return "quality"
	case strings.Contains(systemPrompt, "delivery specialist"):
		return "delivery"
	case strings.Contains(systemPrompt, "handoff packages"):
		return "review"
	default:
		return "unknown"
	}
}

func (c *stageClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *stageClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stage := stageFor(systemPrompt)
	seq := c.responses[stage]
	idx := c.counts[stage]
	c.counts[stage]++

	if len(seq) == 0 {
		return "", nil
	}
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	return seq[idx], nil
}

// --- hangingClient ---

// hangingClient blocks every call until the context is done, simulating
// a provider that never answers within the deadline. Optionally only
// specific stages hang; others delegate to the wrapped client.
type hangingClient struct {
	hangStages map[string]bool
	inner      *stageClient
}

func (c *hangingClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *hangingClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stage := stageFor(systemPrompt)
	if c.hangStages == nil || c.hangStages[stage] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return c.inner.CompleteWithSystem(ctx, systemPrompt, userPrompt)
}

// --- canned stage outputs ---

const goodContentJSON = `{"headline": "Spring Into Savings", "body": "Fresh deals for the season.", "call_to_action": "Shop now", "keywords": ["hero", "launch"], "tone": "upbeat"}`

const goodDesignJSON = `{"template": "hero-grid", "selected_assets": ["hero-banner-01.png"], "color_palette": ["#ff6600"], "layout_notes": "banner above the fold"}`

const passingQualityJSON = `{"overall_score": 92, "category_scores": {"content": 95, "technical": 90}, "issues": [], "passed_checks": ["tone", "brand"], "recommendations": []}`

const middlingQualityJSON = `{"overall_score": 70, "category_scores": {"content": 72}, "issues": [{"severity": "medium", "category": "content", "description": "headline runs long"}], "passed_checks": [], "recommendations": ["shorten headline"]}`

const criticalContentQualityJSON = `{"overall_score": 75, "category_scores": {"content": 40}, "issues": [{"severity": "critical", "category": "content", "description": "unsupported product claim"}], "passed_checks": [], "recommendations": []}`

const lowQualityJSON = `{"overall_score": 30, "category_scores": {"design": 25}, "issues": [{"severity": "high", "category": "design", "description": "layout broken on mobile"}], "passed_checks": [], "recommendations": []}`

const goodDeliveryJSON = `{"artifacts": ["campaign.zip", "email.html"], "channel": "email", "notes": "scheduled"}`

func passingClient() *stageClient {
	c := newStageClient()
	c.respond("content", goodContentJSON)
	c.respond("design", goodDesignJSON)
	c.respond("quality", passingQualityJSON)
	c.respond("delivery", goodDeliveryJSON)
	return c
}
