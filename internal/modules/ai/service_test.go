package ai

import (
	"context"
	"errors"
	"testing"

	appcfg "github.com/docverse/core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{context.Canceled, ErrorKindCancelled},
		{context.DeadlineExceeded, ErrorKindTimeout},
		{errors.New("401 Unauthorized"), ErrorKindAuth},
		{errors.New("invalid api key provided"), ErrorKindAuth},
		{errors.New("429 rate limit exceeded"), ErrorKindQuota},
		{errors.New("insufficient quota"), ErrorKindQuota},
		{errors.New("request timeout while waiting"), ErrorKindTimeout},
		{errors.New("connection reset by peer"), ErrorKindProvider},
		{nil, ErrorKindProvider},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyError(tc.err), "err=%v", tc.err)
	}
}

func TestParseSummaryResponse(t *testing.T) {
	raw := `{"summary": "Covers onboarding policy.", "topics": ["onboarding", " policy ", ""]}`
	out, err := parseSummaryResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Covers onboarding policy.", out.Summary)
	assert.Equal(t, []string{"onboarding", "policy"}, out.Topics)
}

func TestParseSummaryResponseFencedJSON(t *testing.T) {
	raw := "```json\n{\"summary\": \"Fenced.\", \"topics\": [\"a\"]}\n```"
	out, err := parseSummaryResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Fenced.", out.Summary)
}

func TestParseSummaryResponseSurroundingProse(t *testing.T) {
	raw := `Sure, here you go: {"summary": "Buried.", "topics": []} hope that helps`
	out, err := parseSummaryResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Buried.", out.Summary)
}

func TestParseSummaryResponseRejectsEmpty(t *testing.T) {
	_, err := parseSummaryResponse(`{"summary": "  ", "topics": []}`)
	assert.Error(t, err)

	_, err = parseSummaryResponse("not json at all")
	assert.Error(t, err)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 100))
	assert.Equal(t, "abc...", truncateText("abcdef", 3))
	assert.Equal(t, "unbounded", truncateText("unbounded", 0))
}

func TestNormalizeOpenAIBaseURL(t *testing.T) {
	assert.Equal(t, "", normalizeOpenAIBaseURL(""))
	assert.Equal(t, "https://api.example.com/v1", normalizeOpenAIBaseURL("https://api.example.com"))
	assert.Equal(t, "https://api.example.com/v1", normalizeOpenAIBaseURL("https://api.example.com/v1/"))
	assert.Equal(t, "https://api.example.com/custom/v1", normalizeOpenAIBaseURL("https://api.example.com/custom"))
}

func TestSelectProvider(t *testing.T) {
	cfg := appcfg.AIConfig{
		Providers: []appcfg.AIProvider{
			{ID: "disabled", Type: "openai", Enabled: false},
			{ID: "primary", Type: "openai", DefaultModel: "gpt-4o-mini", Enabled: true},
			{ID: "claude", Type: "anthropic", DefaultModel: "claude-sonnet", Enabled: true},
		},
	}

	picked := selectProvider(cfg, nil)
	require.NotNil(t, picked)
	assert.Equal(t, "primary", picked.ID)

	picked = selectProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "claude", Model: "claude-opus"})
	require.NotNil(t, picked)
	assert.Equal(t, "claude", picked.ID)
	assert.Equal(t, "claude-opus", picked.DefaultModel)

	picked = selectProvider(cfg, &appcfg.AIModelAssignment{ProviderID: "missing"})
	require.NotNil(t, picked)
	assert.Equal(t, "primary", picked.ID)

	assert.Nil(t, selectProvider(appcfg.AIConfig{}, nil))
}

func TestSelectEmbeddingProviderSkipsAnthropic(t *testing.T) {
	cfg := appcfg.AIConfig{
		Providers: []appcfg.AIProvider{
			{ID: "claude", Type: "anthropic", Enabled: true},
			{ID: "oa", Type: "openai", Enabled: true},
		},
	}
	picked := selectEmbeddingProvider(cfg)
	require.NotNil(t, picked)
	assert.Equal(t, "oa", picked.ID)

	assert.Nil(t, selectEmbeddingProvider(appcfg.AIConfig{
		Providers: []appcfg.AIProvider{{ID: "claude", Type: "anthropic", Enabled: true}},
	}))
}
