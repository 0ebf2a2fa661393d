package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

const firstSpeakerAgent = "FIRST_SPEAKER_AGENT"

// CallConfig is the Ultravox create-call body for a Twilio-bridged call.
type CallConfig struct {
	Model        string                 `json:"model"`
	Voice        string                 `json:"voice"`
	Temperature  float64                `json:"temperature"`
	FirstSpeaker string                 `json:"firstSpeaker"`
	Medium       map[string]interface{} `json:"medium"`
	SystemPrompt string                 `json:"systemPrompt"`
}

type createCallResponse struct {
	CallID  string `json:"callId"`
	JoinURL string `json:"joinUrl"`
}

// CallCreator starts a voice agent session and returns its stream join URL.
type CallCreator interface {
	CreateCall(ctx context.Context, systemPrompt string) (string, error)
}

type UltravoxClient struct {
	apiURL      string
	apiKey      string
	model       string
	voice       string
	temperature float64
	client      *http.Client
}

func NewUltravoxClient(apiURL, apiKey, model, voice string, temperature float64, client *http.Client) *UltravoxClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &UltravoxClient{
		apiURL:      apiURL,
		apiKey:      apiKey,
		model:       model,
		voice:       voice,
		temperature: temperature,
		client:      client,
	}
}

func (u *UltravoxClient) CreateCall(ctx context.Context, systemPrompt string) (_ string, err error) {
	ctx, span := telemetry.StartExternalSpan(ctx, "ultravox", "create_call", attribute.String("ultravox.model", u.model))
	defer func() { telemetry.EndSpan(span, err) }()

	if u.apiKey == "" {
		return "", errors.New("ultravox api key is not configured")
	}
	body, err := json.Marshal(CallConfig{
		Model:        u.model,
		Voice:        u.voice,
		Temperature:  u.temperature,
		FirstSpeaker: firstSpeakerAgent,
		Medium:       map[string]interface{}{"twilio": map[string]interface{}{}},
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build ultravox request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", u.apiKey)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ultravox request failed: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ultravox returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out createCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ultravox response: %w", err)
	}
	if out.JoinURL == "" {
		return "", errors.New("ultravox response has no joinUrl")
	}
	return out.JoinURL, nil
}
