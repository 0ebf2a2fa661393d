package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

const maxMediaBytes = 16 << 20

// Media is a downloaded WhatsApp attachment.
type Media struct {
	Data        []byte
	ContentType string
}

// DataURL encodes the media for inline use in a vision prompt.
func (m Media) DataURL() string {
	ct := m.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

var audioExtensions = map[string]string{
	"audio/ogg":   ".ogg",
	"audio/opus":  ".opus",
	"audio/mpeg":  ".mp3",
	"audio/mp4":   ".m4a",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
	"audio/webm":  ".webm",
	"audio/flac":  ".flac",
}

// Extension names the upload for the transcription API, which sniffs the
// format from the file name.
func (m Media) Extension() string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(m.ContentType, ";", 2)[0]))
	if ext, ok := audioExtensions[ct]; ok {
		return ext
	}
	if i := strings.Index(ct, "/"); i >= 0 && i < len(ct)-1 {
		return "." + strings.TrimPrefix(ct[i+1:], "x-")
	}
	return ".bin"
}

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (Media, error)
}

// TwilioMediaFetcher downloads message media with the account's basic auth.
type TwilioMediaFetcher struct {
	accountSID string
	authToken  string
	client     *http.Client
}

func NewTwilioMediaFetcher(accountSID, authToken string, client *http.Client) *TwilioMediaFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &TwilioMediaFetcher{accountSID: accountSID, authToken: authToken, client: client}
}

func (f *TwilioMediaFetcher) Fetch(ctx context.Context, url string) (_ Media, err error) {
	ctx, span := telemetry.StartExternalSpan(ctx, "twilio", "fetch_media")
	defer func() { telemetry.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, fmt.Errorf("invalid media url: %w", err)
	}
	if f.accountSID != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return Media{}, fmt.Errorf("media fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return Media{}, fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return Media{}, fmt.Errorf("media larger than %d bytes", maxMediaBytes)
	}
	span.SetAttributes(
		attribute.Int("media.bytes", len(data)),
		attribute.String("media.content_type", resp.Header.Get("Content-Type")),
	)
	return Media{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}
