// Package model defines the provider-agnostic request/response shapes used by
// every LLM-driven agent in this module (Learning, Pilot, Executor, Analysis
// planner/reporter). It mirrors the shape-only contract described in spec.md
// §1 ("only their request/response shape matters"): callers never see
// provider-specific SDK types outside the adapters in model/anthropic and
// model/openai.
//
// The four agent protocols in this system (§4.4, §4.6, §4.7, §4.8) are all
// single-shot, tagged-block text completions rather than native function
// calling, so Request/Response model plain conversational turns: a system
// prompt, an ordered history of role-tagged messages, and a text response.
// Tool invocation is a layer this module owns (C1/C3), not something
// delegated to provider-native tool-use.
package model

import (
	"context"
)

// Role identifies the speaker of a message in a conversation.
type Role string

const (
	// RoleSystem carries the system prompt. At most one System message is
	// honored per Request; adapters place it according to provider
	// convention (Anthropic: top-level System field; OpenAI: a system role
	// message prepended to Messages).
	RoleSystem Role = "system"
	// RoleUser carries user-authored or host-injected turns (e.g. tool
	// results fed back as the next user turn by the Learning Agent).
	RoleUser Role = "user"
	// RoleAssistant carries prior model completions.
	RoleAssistant Role = "assistant"
)

type (
	// Message is one turn in a conversation.
	Message struct {
		Role Role
		Text string
	}

	// ModelClass selects a model tier when Model is not pinned explicitly.
	// Agents that need fast/cheap turns (e.g. the Executor's single-call
	// parse) can request ModelClassSmall; agents that plan (Pilot, Data
	// Analysis Planner) typically want ModelClassDefault or higher.
	ModelClass string

	// Request captures one model invocation.
	Request struct {
		// RunID identifies the logical session/run for attribution in logs
		// and usage metrics; optional.
		RunID string
		// Model pins a provider-specific model identifier. Takes precedence
		// over ModelClass when both are set.
		Model string
		// ModelClass selects a model family when Model is empty.
		ModelClass ModelClass
		// System is the system prompt for this turn.
		System string
		// Messages is the ordered conversation history, oldest first.
		Messages []Message
		// Temperature controls sampling when supported by the provider.
		Temperature float32
		// MaxTokens caps the number of output tokens.
		MaxTokens int
	}

	// TokenUsage reports token consumption for a single completion.
	TokenUsage struct {
		Model        string
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Response is the result of a non-streaming invocation.
	Response struct {
		// Text is the concatenated assistant text content.
		Text string
		// Usage reports token consumption for the request.
		Usage TokenUsage
		// StopReason records why generation stopped (provider-specific).
		StopReason string
	}

	// Client is the provider-agnostic model client. Implementations
	// translate Requests into provider SDK calls and adapt the response
	// back into Response.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

const (
	// ModelClassDefault is the baseline tier used by the Pilot and Learning
	// agents.
	ModelClassDefault ModelClass = "default"
	// ModelClassHighReasoning is used by the Data Analysis Planner, whose
	// operation lines require careful multi-step reasoning.
	ModelClassHighReasoning ModelClass = "high_reasoning"
	// ModelClassSmall is used by the Executor agent, whose single-call-per-
	// turn parse is cheap and latency-sensitive.
	ModelClassSmall ModelClass = "small"
)
