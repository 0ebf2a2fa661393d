// Package assistant implements the WhatsApp medical assistant and the
// telephony hand-off to the voice agent.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel/attribute"

	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one prompt message. ImageURL, when set on a user message,
// is sent as an image part alongside Text.
type ChatMessage struct {
	Role     Role
	Text     string
	ImageURL string
}

type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int64
}

// LLM is the language model collaborator: chat completion with optional
// vision input, and speech transcription.
type LLM interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

var errEmptyCompletion = errors.New("empty completion")

// OpenAIClient talks to any OpenAI-compatible API (Groq by default).
type OpenAIClient struct {
	client             openai.Client
	transcriptionModel string
}

func NewOpenAIClient(baseURL, apiKey, transcriptionModel string, timeout time.Duration, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		base = append(base, option.WithRequestTimeout(timeout))
	}
	return &OpenAIClient{
		client:             openai.NewClient(append(base, opts...)...),
		transcriptionModel: transcriptionModel,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (_ string, err error) {
	ctx, span := telemetry.StartExternalSpan(ctx, "llm", "chat_completion",
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyCompletion
	}
	return content, nil
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audio []byte, filename string) (_ string, err error) {
	ctx, span := telemetry.StartExternalSpan(ctx, "llm", "transcription",
		attribute.String("llm.model", c.transcriptionModel),
		attribute.Int("llm.audio_bytes", len(audio)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), filename, ""),
		Model: openai.AudioModel(c.transcriptionModel),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func toOpenAIMessages(msgs []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			if m.ImageURL == "" {
				out = append(out, openai.UserMessage(m.Text))
				continue
			}
			var parts []openai.ChatCompletionContentPartUnionParam
			if m.Text != "" {
				parts = append(parts, openai.TextContentPart(m.Text))
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: m.ImageURL,
			}))
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}
