package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/quickchat/todo-triage/internal/core"
	"github.com/quickchat/todo-triage/internal/utils"
	"go.uber.org/zap"
)

// Summarizer is an implementation of the core.Summarizer interface using Amazon Bedrock
type Summarizer struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewSummarizer creates a new Bedrock summarizer
func NewSummarizer(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Summarizer {
	return &Summarizer{
		client:        client,
		modelID:       modelID,
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

	var b strings.Builder
	for _, m := range messages {
		body := s.textProcessor.ProcessText(m.Content, s.maxBodySize)
		fmt.Fprintf(&b, "---\nID: %s\nFrom: %s\nSubject: %s\nBody:\n%s\n", m.ID, m.Sender, m.Subject, body)
	}
	prompt := fmt.Sprintf(s.promptFormat, b.String())

	// Create the request based on the model family
	var payload []byte
	var err error

	if s.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": s.maxTokens,
			"temperature":          s.temperature,
			"top_p":                s.topP,
		})
	} else if s.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.maxTokens,
				"temperature":   s.temperature,
				"topP":          s.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  s.maxTokens,
			"temperature": s.temperature,
			"top_p":       s.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &s.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := s.responseText(resp.Body)
	if err != nil {
		return nil, err
	}

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
		zap.String("model", s.modelID))
	return verdicts, nil
}

// responseText extracts the generated text from a model-family-specific body
func (s *Summarizer) responseText(body []byte) (string, error) {
	if s.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}
	if s.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(body), nil
	}
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (s *Summarizer) isAnthropicModel() bool {
	return strings.Contains(s.modelID, "anthropic")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (s *Summarizer) isAmazonTitanModel() bool {
	return strings.Contains(s.modelID, "titan")
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
