package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	appcfg "github.com/docverse/core/internal/config"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	"go.uber.org/zap"
)

// Service wraps the configured AI providers behind embedding, summary and
// streaming answer operations.
type Service struct {
	cfg    appcfg.AIConfig
	rcfg   appcfg.RetrievalConfig
	logger *zap.Logger
}

func NewService(cfg appcfg.AIConfig, rcfg appcfg.RetrievalConfig, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		rcfg:   rcfg,
		logger: logger.Named("ai"),
	}
}

func (s *Service) maxAnswerTokens() int {
	return 2048
}

// DocumentSummary is the structured output of summary generation.
type DocumentSummary struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// GenerateSummary asks the configured summary model for a condensed
// description of a document plus a handful of topic labels.
func (s *Service) GenerateSummary(ctx context.Context, title, text string) (*DocumentSummary, error) {
	provider := selectProvider(s.cfg, s.cfg.SummaryModel)
	if provider == nil {
		return nil, errors.New("no enabled AI provider")
	}

	model, err := buildLanguageModel(provider)
	if err != nil {
		return nil, err
	}

	systemPrompt, prompt := buildSummaryPrompt(title, truncateText(text, s.rcfg.EmbeddingMaxChars))
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(600),
	)
	if err != nil {
		return nil, err
	}

	raw, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	return parseSummaryResponse(raw)
}

func buildSummaryPrompt(title, text string) (string, string) {
	systemPrompt := "You summarize documents for a retrieval index. " +
		"Respond with a JSON object only, no prose: " +
		`{"summary": "...", "topics": ["...", "..."]}. ` +
		"The summary is 2-4 sentences describing what the document covers. " +
		"Topics are 3-8 short labels."
	prompt := fmt.Sprintf("Title: %s\n\nDocument:\n%s", title, text)
	return systemPrompt, prompt
}

func parseSummaryResponse(raw string) (*DocumentSummary, error) {
	var out DocumentSummary
	if err := unmarshalAIJSON(raw, &out); err != nil {
		return nil, err
	}
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Summary == "" {
		return nil, errors.New("summary is empty in AI response")
	}

	topics := make([]string, 0, len(out.Topics))
	for _, topic := range out.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		topics = append(topics, topic)
	}
	out.Topics = topics
	return &out, nil
}

func unmarshalAIJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("invalid JSON response from AI")
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from AI")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from AI")
	}
	return text, nil
}

func truncateText(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
