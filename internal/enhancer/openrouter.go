package enhancer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/valpere/slidetran/internal/placeholder"
	"github.com/valpere/slidetran/internal/postprocess"
)

const (
	defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel    = "google/gemini-2.0-flash-001"

	openRouterTimeout = 60 * time.Second
)

// OpenRouterEnhancer refines drafts through the OpenRouter chat completions
// API, which speaks the OpenAI wire protocol.
type OpenRouterEnhancer struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenRouterEnhancer builds an enhancer talking to endpoint (the public
// OpenRouter API when empty) with the given key. model is used for requests
// that do not name one.
func NewOpenRouterEnhancer(apiKey, endpoint, model string) (*OpenRouterEnhancer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: API key is required")
	}
	if endpoint == "" {
		endpoint = defaultOpenRouterEndpoint
	}
	if model == "" {
		model = defaultOpenRouterModel
	}
	client := openai.NewClient(
		option.WithBaseURL(endpoint),
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(openRouterTimeout),
	)
	return &OpenRouterEnhancer{client: &client, defaultModel: model}, nil
}

func (e *OpenRouterEnhancer) Name() string { return "openrouter" }

// Enhance sends the draft for refinement. URLs and email addresses in the
// draft are shielded with placeholder markers; if the model damages a
// marker the draft is returned unchanged rather than a corrupted result.
func (e *OpenRouterEnhancer) Enhance(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.DraftText) == "" {
		return req.DraftText, nil
	}
	model := req.Model
	if model == "" {
		model = e.defaultModel
	}

	protected, stash := placeholder.Protect(req.DraftText)
	shielded := req
	shielded.DraftText = protected
	var hint string
	if len(stash) > 0 {
		hint = placeholder.InstructionHint()
	}

	resp, err := e.client.Chat.Completions.New(ctx,
		openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(buildPrompt(shielded, hint)),
			},
			Model: model,
		})
	if err != nil {
		return "", fmt.Errorf("openrouter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty response from model %s", model)
	}

	out := postprocess.Clean(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openrouter: model %s returned no usable text", model)
	}
	if missing := placeholder.Validate(out, stash); len(missing) > 0 {
		return req.DraftText, nil
	}
	return placeholder.Restore(out, stash), nil
}
