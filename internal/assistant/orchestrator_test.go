package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tripchat/internal/domain"
	"tripchat/internal/tool"
)

type scriptedPlanner struct {
	responses []*domain.ChatResponse
	errs      []error
	calls     int
	requests  [][]domain.ChatMessage
}

func (p *scriptedPlanner) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	p.requests = append(p.requests, req.Messages)
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return &domain.ChatResponse{Content: "out of script", FinishReason: "stop"}, nil
	}
	return p.responses[i], nil
}

func (p *scriptedPlanner) Name() string                  { return "scripted" }
func (p *scriptedPlanner) Healthy(context.Context) error { return nil }

type stubTool struct {
	name   string
	result string
	err    error
	calls  int
}

func (t *stubTool) Name() string               { return t.name }
func (t *stubTool) Description() string        { return "stub" }
func (t *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *stubTool) Execute(context.Context, map[string]any) (string, error) {
	t.calls++
	return t.result, t.err
}

func newOrchestrator(t *testing.T, planner domain.Planner, tools ...*stubTool) (*Orchestrator, *tool.Registry) {
	t.Helper()
	reg := tool.NewRegistry()
	for _, st := range tools {
		if err := reg.Register(st); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return NewOrchestrator(OrchestratorConfig{Planner: planner, Tools: reg}), reg
}

func drain(status chan string) []string {
	close(status)
	var out []string
	for s := range status {
		out = append(out, s)
	}
	return out
}

func TestRunDirectAnswer(t *testing.T) {
	planner := &scriptedPlanner{responses: []*domain.ChatResponse{
		{Content: "Here you go.", FinishReason: "stop"},
	}}
	orch, _ := newOrchestrator(t, planner)

	status := make(chan string, 16)
	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}}, status)
	if got != "Here you go." {
		t.Errorf("result = %q", got)
	}
	if planner.calls != 1 {
		t.Errorf("planner calls = %d", planner.calls)
	}
	statuses := drain(status)
	if len(statuses) != 1 || statuses[0] != "Thinking…" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	st := &stubTool{name: "search_flights", result: `{"flights":[]}`}
	planner := &scriptedPlanner{responses: []*domain.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls: []domain.ToolCall{{
				ID: "call_1", Name: "search_flights",
				Arguments: map[string]any{"origin": "Austin", "destination": "Denver"},
			}},
		},
		{Content: "Cheapest is $189.", FinishReason: "stop"},
	}}
	orch, _ := newOrchestrator(t, planner, st)

	status := make(chan string, 16)
	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "flights?"}}, status)
	if got != "Cheapest is $189." {
		t.Errorf("result = %q", got)
	}
	if st.calls != 1 {
		t.Errorf("tool calls = %d", st.calls)
	}

	// Second request must carry the assistant tool-call turn and the tool
	// result.
	second := planner.requests[1]
	if len(second) != 3 {
		t.Fatalf("second request messages = %d", len(second))
	}
	if len(second[1].ToolCalls) != 1 {
		t.Errorf("assistant turn = %+v", second[1])
	}
	toolMsg := second[2]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" || toolMsg.Content != `{"flights":[]}` {
		t.Errorf("tool turn = %+v", toolMsg)
	}

	statuses := drain(status)
	found := false
	for _, s := range statuses {
		if strings.Contains(s, "Austin") && strings.Contains(s, "Denver") {
			found = true
		}
	}
	if !found {
		t.Errorf("no flight search status in %v", statuses)
	}
}

func TestRunToolErrorFoldedIntoResult(t *testing.T) {
	st := &stubTool{name: "search_places", err: errors.New("quota exceeded")}
	planner := &scriptedPlanner{responses: []*domain.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls:    []domain.ToolCall{{ID: "c1", Name: "search_places", Arguments: map[string]any{}}},
		},
		{Content: "I could not look that up.", FinishReason: "stop"},
	}}
	orch, _ := newOrchestrator(t, planner, st)

	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "places"}}, nil)
	if got != "I could not look that up." {
		t.Errorf("result = %q", got)
	}
	toolMsg := planner.requests[1][2]
	if !strings.Contains(toolMsg.Content, "quota exceeded") {
		t.Errorf("tool result should carry the error payload: %q", toolMsg.Content)
	}
}

func TestRunRoundCapExhaustion(t *testing.T) {
	// Every round requests another tool call; the loop must stop at the cap
	// and return the last text (empty here).
	st := &stubTool{name: "search_places", result: "{}"}
	var responses []*domain.ChatResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, &domain.ChatResponse{
			FinishReason: "tool_calls",
			ToolCalls:    []domain.ToolCall{{ID: "c", Name: "search_places", Arguments: map[string]any{}}},
		})
	}
	planner := &scriptedPlanner{responses: responses}
	orch, _ := newOrchestrator(t, planner, st)

	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "go"}}, nil)
	if got != "" {
		t.Errorf("result = %q", got)
	}
	if planner.calls != defaultMaxRounds {
		t.Errorf("planner calls = %d, want %d", planner.calls, defaultMaxRounds)
	}
}

func TestRunRoundCapKeepsLastText(t *testing.T) {
	// Tool-call rounds can carry commentary; hitting the cap must return the
	// most recent non-empty text rather than dropping it.
	st := &stubTool{name: "search_places", result: "{}"}
	var responses []*domain.ChatResponse
	for i := 0; i < 10; i++ {
		content := ""
		if i == 2 {
			content = "Still comparing a few options."
		}
		responses = append(responses, &domain.ChatResponse{
			Content:      content,
			FinishReason: "tool_calls",
			ToolCalls:    []domain.ToolCall{{ID: "c", Name: "search_places", Arguments: map[string]any{}}},
		})
	}
	planner := &scriptedPlanner{responses: responses}
	orch, _ := newOrchestrator(t, planner, st)

	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "go"}}, nil)
	if got != "Still comparing a few options." {
		t.Errorf("result = %q", got)
	}
}

func TestRunPlannerErrorReturnsLastText(t *testing.T) {
	planner := &scriptedPlanner{errs: []error{errors.New("upstream 500")}}
	orch, _ := newOrchestrator(t, planner)

	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "hi"}}, nil)
	if got != "" {
		t.Errorf("result = %q", got)
	}
}

func TestRunFullStatusChannelNeverBlocks(t *testing.T) {
	st := &stubTool{name: "search_places", result: "{}"}
	planner := &scriptedPlanner{responses: []*domain.ChatResponse{
		{
			FinishReason: "tool_calls",
			ToolCalls:    []domain.ToolCall{{ID: "c", Name: "search_places", Arguments: map[string]any{}}},
		},
		{Content: "done", FinishReason: "stop"},
	}}
	orch, _ := newOrchestrator(t, planner, st)

	// Capacity 1 and no reader: later statuses are dropped, the run
	// completes anyway.
	status := make(chan string, 1)
	got := orch.Run(context.Background(), []domain.ChatMessage{{Role: "user", Content: "go"}}, status)
	if got != "done" {
		t.Errorf("result = %q", got)
	}
}
