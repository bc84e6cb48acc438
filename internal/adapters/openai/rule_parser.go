package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quickchat/todo-triage/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// RuleParser turns free-text top-3 instructions into structured boosts
// using OpenAI
type RuleParser struct {
	client      *openai.Client
	modelName   string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewRuleParser creates a new OpenAI rule parser
func NewRuleParser(client *openai.Client, modelName string, maxTokens int, temperature float32, logger *zap.Logger) *RuleParser {
	return &RuleParser{
		client:      client,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

const ruleParserPrompt = `You translate an instruction about todo prioritization into structured rules.
Respond with a JSON object containing:
- reset: boolean (true only if the user asks to reset or clear the rules)
- weights: object mapping weight names (priority_high, priority_medium, priority_low, deadline_emphasis, evidence_per_item, evidence_max_bonus, cc_penalty) to numbers; include only weights the instruction changes
- requester: object mapping requester names to a numeric bonus (1 to 10)
- keyword: object mapping keywords to a numeric bonus (1 to 10)
- action_type: object mapping action types (meeting, deadline, review, task, response) to a numeric bonus (1 to 10)

Instruction: %s

Respond only with the JSON object and nothing else.`

// ParseRules asks the model to interpret one instruction
func (p *RuleParser) ParseRules(ctx context.Context, text string) (*core.ParsedRules, error) {
	req := openai.ChatCompletionRequest{
		Model: p.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a rule translation assistant. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(ruleParserPrompt, text),
			},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json_object",
	}
	req.ResponseFormat = &responseFormat

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	var parsed struct {
		Reset      bool               `json:"reset"`
		Weights    map[string]float64 `json:"weights"`
		Requester  map[string]float64 `json:"requester"`
		Keyword    map[string]float64 `json:"keyword"`
		ActionType map[string]float64 `json:"action_type"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	p.logger.Debug("Parsed rule instruction",
		zap.Bool("reset", parsed.Reset),
		zap.Int("requesters", len(parsed.Requester)),
		zap.Int("keywords", len(parsed.Keyword)),
		zap.Int("action_types", len(parsed.ActionType)))

	return &core.ParsedRules{
		Reset:      parsed.Reset,
		Weights:    parsed.Weights,
		Requester:  parsed.Requester,
		Keyword:    parsed.Keyword,
		ActionType: parsed.ActionType,
	}, nil
}
