package assistant

import (
	"context"

	"github.com/sirupsen/logrus"
)

const (
	streamName       = "ultravox"
	callFailedSpeech = "Sorry, there was an error connecting your call."
)

// VoiceGateway answers inbound phone calls by handing the audio to the
// voice agent.
type VoiceGateway struct {
	calls   CallCreator
	prompts Prompts
	logger  *logrus.Logger
}

func NewVoiceGateway(calls CallCreator, prompts Prompts, logger *logrus.Logger) *VoiceGateway {
	return &VoiceGateway{calls: calls, prompts: prompts, logger: logger}
}

// Answer returns the TwiML for a call from caller. When the agent session
// cannot be created the caller hears an apology instead.
func (g *VoiceGateway) Answer(ctx context.Context, caller string) ([]byte, error) {
	joinURL, err := g.calls.CreateCall(ctx, g.prompts.VoicePromptFor(caller))
	if err != nil {
		g.logger.WithError(err).WithField("caller", caller).Error("Failed to create voice agent call")
		return SayTwiML(callFailedSpeech)
	}
	g.logger.WithField("caller", caller).Info("Voice call connected")
	return ConnectStreamTwiML(joinURL, streamName)
}
