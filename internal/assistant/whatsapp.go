package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/irfndi/tanya-ai-go/internal/models"
	"github.com/irfndi/tanya-ai-go/internal/session"
	"github.com/irfndi/tanya-ai-go/internal/telemetry"
)

// Fixed replies.
const (
	ResetReply = "Conversation reset. Hello! I'm Tanya, your medical assistant at Symbiosis Hospital. " +
		"I can help analyze injuries from images or answer medical questions. How can I assist you today?"
	UnsupportedMediaReply = "Sorry, I can only process text, images, or audio messages."
	InjuryDisclaimer      = "\n\n⚠️ IMPORTANT: Visit Our Hospital for Proper diagnosis."
	AudioFallbackPrefix   = "Sorry, I couldn't generate the audio response. Here's the text instead:\n"
	VisionFailureReply    = "Sorry, I couldn't analyze the image at this time. Please try again or consult a medical professional."

	imageFetchFailed  = "Sorry, I couldn't access the image. Please try sending it again."
	audioFetchFailed  = "Sorry, I couldn't access the audio. Please try sending it again."
	transcribeFailed  = "Sorry, I couldn't transcribe the audio. Please try sending it again."
	defaultImageInput = "Sent an image for analysis"
)

// Model parameters for the two completion paths.
const (
	visionTemperature = 0.3
	visionMaxTokens   = 1024
	textTemperature   = 0.7
	textMaxTokens     = 500
)

var (
	resetPhrases     = map[string]bool{"start over": true, "reset": true, "new consultation": true}
	audioRequest     = regexp.MustCompile(`(?i)send as audio|voice response|audio reply`)
	languageSwitch   = regexp.MustCompile(`(?i)\buse\s+([a-z]{2,3})\b`)
	replyLanguages   = []language.Tag{language.English, language.Hindi, language.Marathi}
	languageMatcher  = language.NewMatcher(replyLanguages)
	multipleSpacesRe = regexp.MustCompile(`\s{2,}`)
	languageNames    = map[string]string{"hi": "Hindi", "mr": "Marathi"}
)

// ApologyReply is sent whenever a message cannot be processed.
func ApologyReply(hospitalPhone string) string {
	return "Sorry, I encountered an issue processing your request. Please try again or contact " +
		"Symbiosis Hospital directly for urgent medical concerns or call " + hospitalPhone + "."
}

// IncomingMessage carries the Twilio webhook form fields the bridge reads.
type IncomingMessage struct {
	Body             string
	From             string
	MediaURL         string
	MediaContentType string
}

// InjuryReportSink persists injury consultations.
type InjuryReportSink interface {
	SaveInjuryReport(ctx context.Context, report models.InjuryReport) error
}

// InjuryNotifier alerts hospital staff about an injury consultation.
type InjuryNotifier interface {
	NotifyInjuryConsultation(ctx context.Context, sender string, hasImage bool) error
}

type BridgeConfig struct {
	ChatModel     string
	VisionModel   string
	HistoryLimit  int
	HospitalPhone string
}

// Bridge turns WhatsApp messages into assistant replies.
type Bridge struct {
	cfg      BridgeConfig
	llm      LLM
	media    MediaFetcher
	store    session.Store
	prompts  Prompts
	reports  InjuryReportSink
	notifier InjuryNotifier
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBridge wires the bridge. reports and notifier may be nil.
func NewBridge(cfg BridgeConfig, llm LLM, media MediaFetcher, store session.Store, prompts Prompts,
	reports InjuryReportSink, notifier InjuryNotifier, logger *logrus.Logger) *Bridge {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	return &Bridge{
		cfg:      cfg,
		llm:      llm,
		media:    media,
		store:    store,
		prompts:  prompts,
		reports:  reports,
		notifier: notifier,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
		now:      time.Now,
	}
}

// userTurn is the prepared user side of one exchange.
type userTurn struct {
	text     string
	imageURL string
	history  string
	hasImage bool
	reply    string
}

// Handle processes one message and returns the reply text. It never fails;
// internal errors produce the apology reply.
func (b *Bridge) Handle(ctx context.Context, msg IncomingMessage) string {
	ctx, span := b.tracer.TraceAssistantMessage(ctx, "whatsapp", msg.MediaURL != "")
	defer span.End()

	reply, err := b.handle(ctx, msg)
	if err != nil {
		b.tracer.RecordFailure(span, err)
		b.logger.WithError(err).WithField("sender", msg.From).Error("Failed to process WhatsApp message")
		return ApologyReply(b.cfg.HospitalPhone)
	}
	return reply
}

func (b *Bridge) handle(ctx context.Context, msg IncomingMessage) (string, error) {
	body := strings.TrimSpace(msg.Body)
	b.logger.WithFields(logrus.Fields{"sender": msg.From, "has_media": msg.MediaURL != ""}).Info("Incoming WhatsApp message")

	if resetPhrases[strings.ToLower(body)] {
		if _, err := b.store.Reset(ctx, msg.From); err != nil {
			return "", fmt.Errorf("reset conversation: %w", err)
		}
		return ResetReply, nil
	}

	conv, err := b.store.Get(ctx, msg.From)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}

	if lang, rest, ok := parseLanguageSwitch(body); ok {
		conv.Language = lang
		body = rest
		b.logger.WithFields(logrus.Fields{"sender": msg.From, "language": lang}).Info("Language switched")
	}

	wantsAudio := audioRequest.MatchString(body)
	if wantsAudio {
		body = cleanSpaces(audioRequest.ReplaceAllString(body, ""))
	}

	turn := b.prepareTurn(ctx, msg, body)
	if turn.reply != "" {
		return turn.reply, nil
	}

	isInjury := turn.hasImage || IsInjuryRelated(turn.text, body)
	if isInjury {
		conv.InjuryConsultations++
	}

	answer, err := b.complete(ctx, conv, turn, isInjury)
	if err != nil {
		return "", err
	}

	conv.Record(turn.history, answer, b.cfg.HistoryLimit, b.now())
	if err := b.store.Save(ctx, conv); err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}

	if isInjury {
		b.recordInjury(ctx, msg.From, turn, answer)
	}

	switch {
	case wantsAudio:
		// No speech synthesizer is wired; fall back to text.
		return AudioFallbackPrefix + answer, nil
	case isInjury:
		return answer + InjuryDisclaimer, nil
	default:
		return answer, nil
	}
}

// prepareTurn resolves attached media into prompt content. A non-empty
// reply short-circuits the model call.
func (b *Bridge) prepareTurn(ctx context.Context, msg IncomingMessage, body string) userTurn {
	ct := strings.ToLower(msg.MediaContentType)
	switch {
	case msg.MediaURL == "":
		return userTurn{text: body, history: body}

	case strings.HasPrefix(ct, "image/"):
		media, err := b.media.Fetch(ctx, msg.MediaURL)
		if err != nil {
			b.logger.WithError(err).Warn("Image fetch failed")
			return userTurn{text: imageFetchFailed, history: "Sent an image (failed to access)", hasImage: true}
		}
		if media.ContentType == "" {
			media.ContentType = msg.MediaContentType
		}
		history := body
		if history == "" {
			history = defaultImageInput
		}
		return userTurn{text: body, imageURL: media.DataURL(), history: history, hasImage: true}

	case strings.HasPrefix(ct, "audio/"):
		media, err := b.media.Fetch(ctx, msg.MediaURL)
		if err != nil {
			b.logger.WithError(err).Warn("Audio fetch failed")
			return userTurn{text: audioFetchFailed, history: "Sent an audio message (failed to access)"}
		}
		if media.ContentType == "" {
			media.ContentType = msg.MediaContentType
		}
		text, err := b.llm.Transcribe(ctx, media.Data, "voice-note"+media.Extension())
		if err != nil || text == "" {
			b.logger.WithError(err).Warn("Transcription failed")
			return userTurn{text: transcribeFailed, history: "Sent an audio message (transcription failed)"}
		}
		return userTurn{text: text, history: text}

	default:
		return userTurn{reply: UnsupportedMediaReply}
	}
}

func (b *Bridge) complete(ctx context.Context, conv *models.Conversation, turn userTurn, isInjury bool) (string, error) {
	system := b.prompts.Text
	if isInjury || turn.hasImage {
		system = b.prompts.Vision
	}

	messages := make([]ChatMessage, 0, 2*len(conv.History)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Text: withLanguage(system, conv.Language)})
	for _, ex := range conv.History {
		messages = append(messages,
			ChatMessage{Role: RoleUser, Text: ex.User},
			ChatMessage{Role: RoleAssistant, Text: ex.Assistant},
		)
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Text: turn.text, ImageURL: turn.imageURL})

	if isInjury && turn.imageURL != "" {
		answer, err := b.llm.Complete(ctx, ChatRequest{
			Model:       b.cfg.VisionModel,
			Messages:    messages,
			Temperature: visionTemperature,
			MaxTokens:   visionMaxTokens,
		})
		if err != nil {
			b.logger.WithError(err).Warn("Vision analysis failed")
			return VisionFailureReply, nil
		}
		return answer, nil
	}

	answer, err := b.llm.Complete(ctx, ChatRequest{
		Model:       b.cfg.ChatModel,
		Messages:    messages,
		Temperature: textTemperature,
		MaxTokens:   textMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (b *Bridge) recordInjury(ctx context.Context, sender string, turn userTurn, answer string) {
	if b.reports != nil {
		err := b.reports.SaveInjuryReport(ctx, models.InjuryReport{
			Timestamp:  b.now(),
			Sender:     sender,
			UserInput:  turn.history,
			AIResponse: answer,
			HasImage:   turn.imageURL != "",
		})
		if err != nil {
			b.logger.WithError(err).Warn("Failed to save injury report")
		}
	}
	if b.notifier != nil {
		if err := b.notifier.NotifyInjuryConsultation(ctx, sender, turn.imageURL != ""); err != nil {
			b.logger.WithError(err).Warn("Failed to notify staff")
		}
	}
}

// parseLanguageSwitch finds a "use <code>" directive for a supported reply
// language and returns the language and the message without it.
func parseLanguageSwitch(text string) (lang string, rest string, ok bool) {
	m := languageSwitch.FindStringSubmatchIndex(text)
	if m == nil {
		return "", text, false
	}
	tag, err := language.Parse(strings.ToLower(text[m[2]:m[3]]))
	if err != nil {
		return "", text, false
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf != language.Exact {
		return "", text, false
	}
	base, _ := replyLanguages[idx].Base()
	return base.String(), cleanSpaces(text[:m[0]] + text[m[1]:]), true
}

// withLanguage asks for replies in lang unless it is English.
func withLanguage(prompt, lang string) string {
	name, ok := languageNames[lang]
	if !ok {
		return prompt
	}
	return prompt + "\n\nReply in " + name + "."
}

func cleanSpaces(s string) string {
	return strings.TrimSpace(multipleSpacesRe.ReplaceAllString(s, " "))
}
