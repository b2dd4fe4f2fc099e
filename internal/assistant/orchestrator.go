package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tripchat/internal/domain"
	"tripchat/internal/tool"
)

const (
	defaultMaxRounds   = 5
	defaultMaxTokens   = 4096
	defaultTemperature = 0.7
)

// Orchestrator drives the bounded multi-round planner loop: each round the
// planner either returns final text or requests tool calls, which are
// dispatched to the external lookup collaborators and fed back as tool
// results. It never persists or broadcasts; progress is reported as short
// status strings on the run's status channel.
type Orchestrator struct {
	planner   domain.Planner
	tools     *tool.Registry
	logger    *slog.Logger
	maxRounds int
}

type OrchestratorConfig struct {
	Planner   domain.Planner
	Tools     *tool.Registry
	Logger    *slog.Logger
	MaxRounds int
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		planner:   cfg.Planner,
		tools:     cfg.Tools,
		logger:    cfg.Logger,
		maxRounds: cfg.MaxRounds,
	}
}

// Run executes one orchestration: call the planner, execute any requested
// tools, repeat up to the round cap. Collaborator failures are folded into
// tool results and never surface as errors; cap exhaustion returns the last
// text produced (possibly empty). Status strings are sent without blocking:
// when the channel is full the update is dropped, never the run.
func (o *Orchestrator) Run(ctx context.Context, messages []domain.ChatMessage, status chan<- string) string {
	var toolDefs []domain.ToolDefinition
	if o.tools != nil {
		toolDefs = o.tools.Definitions()
	}

	var finalText string
	for round := 0; round < o.maxRounds; round++ {
		o.emit(status, "Thinking…")
		o.logger.Debug("planner round", "round", round+1, "messages", len(messages))

		resp, err := o.planner.Chat(ctx, domain.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		})
		if err != nil {
			o.logger.Error("planner call failed", "round", round+1, "err", err)
			return finalText
		}

		// Text accompanying a tool-call round is kept as the candidate final
		// text, so cap exhaustion returns the last thing the planner said.
		if strings.TrimSpace(resp.Content) != "" {
			finalText = resp.Content
		}
		if !resp.HasToolCalls() {
			break
		}

		messages = append(messages, domain.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			o.emit(status, statusFor(tc))
			result := o.executeTool(ctx, tc)
			messages = append(messages, domain.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
	}

	return finalText
}

// executeTool dispatches one tool call. A failure is captured as an error
// payload the planner can react to on the next round.
func (o *Orchestrator) executeTool(ctx context.Context, tc domain.ToolCall) string {
	if o.tools == nil {
		return errPayload(fmt.Errorf("no tools available"))
	}
	o.logger.Info("executing tool", "tool", tc.Name)
	result, err := o.tools.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		o.logger.Warn("tool failed", "tool", tc.Name, "err", err)
		return errPayload(err)
	}
	return result
}

func (o *Orchestrator) emit(status chan<- string, text string) {
	if status == nil {
		return
	}
	select {
	case status <- text:
	default:
	}
}

func errPayload(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}

// statusFor renders a human-readable progress line for one tool dispatch.
func statusFor(tc domain.ToolCall) string {
	arg := func(key string) string {
		v, ok := tc.Arguments[key]
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return strings.TrimSpace(s)
	}

	switch tc.Name {
	case "search_places":
		if q := arg("query"); q != "" {
			return fmt.Sprintf("Searching places for %q…", q)
		}
		return "Searching for places…"
	case "get_place_details":
		return "Checking place details…"
	case "get_directions":
		origin, dest := arg("origin"), arg("destination")
		if origin != "" && dest != "" {
			return fmt.Sprintf("Getting directions from %s to %s…", origin, dest)
		}
		return "Getting directions…"
	case "search_flights":
		origin, dest := arg("origin"), arg("destination")
		if origin != "" && dest != "" {
			return fmt.Sprintf("Searching for flights from %s to %s…", origin, dest)
		}
		return "Searching for flights…"
	case "search_hotels":
		if city := arg("city"); city != "" {
			return fmt.Sprintf("Searching for hotels in %s…", city)
		}
		return "Searching for hotels…"
	default:
		return fmt.Sprintf("Looking up %s…", strings.ReplaceAll(tc.Name, "_", " "))
	}
}
