package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Summarizer is an implementation of the core.Summarizer interface using OpenAI
type Summarizer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// verdictResponse represents one structured verdict from the LLM
type verdictResponse struct {
	OriginalID     string `json:"original_id"`
	ActionRequired bool   `json:"action_required"`
	Summary        string `json:"summary"`
}

// NewSummarizer creates a new OpenAI summarizer
func NewSummarizer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Summarizer {
	return &Summarizer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are a personal task triage assistant. For each of the following messages, decide whether the recipient needs to take an action because of it.
Respond with a JSON object containing a "verdicts" array. Each element must contain:
- original_id: string (the id of the message, copied verbatim)
- action_required: boolean (true if the recipient must act on this message)
- summary: string (one sentence describing the required action, or why none is needed)

Messages:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// Summarize asks the model for an action-required verdict per message
func (s *Summarizer) Summarize(ctx context.Context, messages []core.Message) ([]core.Verdict, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(s.promptFormat, s.formatMessages(messages))

	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a task triage assistant. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	}
	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json_object",
	}
	req.ResponseFormat = &responseFormat

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	var parsed struct {
		Verdicts []verdictResponse `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	verdicts := make([]core.Verdict, 0, len(parsed.Verdicts))
	for _, v := range parsed.Verdicts {
		verdicts = append(verdicts, core.Verdict{
			OriginalID:     v.OriginalID,
			ActionRequired: v.ActionRequired,
			Summary:        v.Summary,
		})
	}

	s.logger.Debug("Summarized message batch",
		zap.Int("messages", len(messages)),
		zap.Int("verdicts", len(verdicts)),
		zap.String("model", s.modelName))
	return verdicts, nil
}

// formatMessages renders the batch for the prompt, truncating long bodies
func (s *Summarizer) formatMessages(messages []core.Message) string {
	var b strings.Builder
	for _, m := range messages {
		body := s.textProcessor.ProcessText(m.Content, s.maxBodySize)
		fmt.Fprintf(&b, "---\nID: %s\nFrom: %s\nSubject: %s\nBody:\n%s\n", m.ID, m.Sender, m.Subject, body)
	}
	return b.String()
}

// extractJSON trims any prose the model wrapped around the JSON payload
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	end := strings.LastIndexAny(text, "}]")
	if end < start {
		return text
	}
	return text[start : end+1]
}
