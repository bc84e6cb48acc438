package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Summarizer is an implementation of the core.Summarizer interface using Google Gemini
type Summarizer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
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

// NewSummarizer creates a new Gemini summarizer
func NewSummarizer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Summarizer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Summarizer{
		client:        client,
		model:         model,
		modelName:     modelName,
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
	}, nil
}

// Close closes the Gemini client
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Summarize asks the model for an action-required verdict per message
func (s *Summarizer) Summarize(ctx context.Context, messages []core.Message) ([]core.Verdict, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, m := range messages {
		body := s.textProcessor.ProcessText(m.Content, s.maxBodySize)
		fmt.Fprintf(&b, "---\nID: %s\nFrom: %s\nSubject: %s\nBody:\n%s\n", m.ID, m.Sender, m.Subject, body)
	}
	prompt := fmt.Sprintf(s.promptFormat, b.String())

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	var parsed struct {
		Verdicts []verdictResponse `json:"verdicts"`
	}
	if err := json.Unmarshal([]byte(extractJSON(responseText)), &parsed); err != nil {
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
