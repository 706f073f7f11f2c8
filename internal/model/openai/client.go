// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API, adapted from the teacher's
// features/model/openai adapter (which targeted an older community SDK)
// onto the official github.com/openai/openai-go client the teacher's go.mod
// already depends on.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mcpilot/core/internal/model"
)

type (
	// ChatClient captures the subset of the OpenAI SDK used by the adapter,
	// so callers can substitute a mock in tests.
	ChatClient interface {
		New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// DefaultModel backs ModelClassDefault.
		DefaultModel string
		// HighModel backs ModelClassHighReasoning.
		HighModel string
		// SmallModel backs ModelClassSmall.
		SmallModel string
		// MaxTokens is used when Request.MaxTokens is unset.
		MaxTokens int
		// Temperature is used when Request.Temperature is unset.
		Temperature float64
	}

	// Client implements model.Client via the OpenAI Chat Completions API.
	Client struct {
		chat         ChatClient
		defaultModel string
		highModel    string
		smallModel   string
		maxTok       int
		temp         float64
	}
)

// New builds an OpenAI-backed model client from the provided chat client.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("default model is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		chat:         chat,
		defaultModel: modelID,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       maxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	cl := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&cl.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := c.resolveModelID(req)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			messages = append(messages, openai.UserMessage(m.Text))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Text))
		}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(modelID),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = openai.Float(float64(t))
	} else if c.temp > 0 {
		params.Temperature = openai.Float(c.temp)
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

func (c *Client) resolveModelID(req *model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHighReasoning:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func translateResponse(resp *openai.ChatCompletion) *model.Response {
	var text string
	var stopReason string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}
	return &model.Response{
		Text:       text,
		StopReason: stopReason,
		Usage: model.TokenUsage{
			Model:        string(resp.Model),
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
}
