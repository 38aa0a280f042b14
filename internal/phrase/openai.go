package phrase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/keyrank/internal/metrics"
	"github.com/FranksOps/keyrank/pkg/httpclient"
)

// OpenAI defaults.
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAITimeout = 30 * time.Second
)

// OpenAIConfig configures the OpenAI-compatible chat completions extractor.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL can point at any OpenAI-compatible API.
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxPhrases int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAI asks a language model for the most relevant keywords of a text.
type OpenAI struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
	model   string
	max     int
	logger  *slog.Logger
}

// NewOpenAI creates an OpenAI extractor.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("phrase: openai API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	if cfg.MaxPhrases <= 0 {
		cfg.MaxPhrases = DefaultMaxPhrases
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("phrase: %w", err)
	}

	return &OpenAI{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		max:     cfg.MaxPhrases,
		logger:  logger,
	}, nil
}

// Extract implements Extractor. The model is asked for a comma-separated list;
// line breaks and list bullets in the answer are tolerated.
func (o *OpenAI) Extract(ctx context.Context, text string) ([]string, error) {
	req := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(text, o.max)},
		},
		MaxTokens:   120,
		Temperature: 0.3,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+o.apiKey)

	var resp chatResponse
	err := o.client.DoJSON(ctx, http.MethodPost, o.baseURL+"/chat/completions", header, req, &resp)
	if err != nil {
		metrics.PhraseExtractionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("openai: %w", err)
	}
	if resp.Error != nil {
		metrics.PhraseExtractionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("openai: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		metrics.PhraseExtractionsTotal.WithLabelValues("error").Inc()
		return nil, errors.New("openai: empty response")
	}

	phrases := parseKeywordList(resp.Choices[0].Message.Content, o.max)
	metrics.PhraseExtractionsTotal.WithLabelValues("ok").Inc()
	o.logger.Debug("openai phrases extracted", "model", o.model, "count", len(phrases))
	return phrases, nil
}

func buildPrompt(text string, n int) string {
	return fmt.Sprintf("Extract the top %d relevant keywords from the following text. "+
		"Return the keywords as a comma-separated list.\n\n%s\n\nKeywords:", n, text)
}

// parseKeywordList splits a model answer into keywords.
func parseKeywordList(answer string, limit int) []string {
	list := newPhraseList(limit)
	for _, line := range strings.Split(answer, "\n") {
		for _, part := range strings.Split(line, ",") {
			part = strings.Trim(stripBullet(strings.TrimSpace(part)), "\"'` ")
			if part != "" {
				list.add(part)
			}
		}
	}
	return list.out
}

// stripBullet removes a leading "-", "*", "•" or "1." / "1)" list marker.
func stripBullet(s string) string {
	s = strings.TrimLeft(s, "-*• ")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') && (i+1 == len(s) || s[i+1] == ' ') {
		s = strings.TrimSpace(s[i+1:])
	}
	return s
}
