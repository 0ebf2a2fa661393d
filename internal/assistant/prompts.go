package assistant

import (
	"fmt"
	"os"
	"strings"
)

const defaultTextPrompt = `You are Tanya, a friendly medical assistant for Symbiosis Hospital.
Answer health questions clearly and briefly, in the language the user writes in.
Never give a definitive diagnosis. Encourage an in-person visit when symptoms are serious,
and tell the user to call emergency services for anything life threatening.`

const defaultVisionPrompt = `You are Tanya, a first-aid assistant for Symbiosis Hospital.
The user may describe an injury or send a photo of one. Describe what you observe, estimate
severity (minor, moderate, severe), list immediate first-aid steps, and say clearly when the
person must seek professional care. Do not prescribe medication.`

const defaultVoicePrompt = `You are Tanya, the voice receptionist of Symbiosis Hospital.
The caller's number is {caller_number}. Greet the caller, find out what they need, and help
them book, view, change or cancel appointments, check insurance, or learn about medicines.
Keep answers short and spoken-friendly.`

// Prompts holds the system prompts used by the assistant.
type Prompts struct {
	Text   string
	Vision string
	Voice  string
}

func DefaultPrompts() Prompts {
	return Prompts{Text: defaultTextPrompt, Vision: defaultVisionPrompt, Voice: defaultVoicePrompt}
}

// LoadPrompts starts from the defaults and replaces each prompt whose file
// path is non-empty.
func LoadPrompts(textFile, visionFile, voiceFile string) (Prompts, error) {
	p := DefaultPrompts()
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{textFile, &p.Text},
		{visionFile, &p.Vision},
		{voiceFile, &p.Voice},
	} {
		if f.path == "" {
			continue
		}
		raw, err := os.ReadFile(f.path)
		if err != nil {
			return Prompts{}, fmt.Errorf("failed to read prompt %s: %w", f.path, err)
		}
		*f.dst = strings.TrimSpace(string(raw))
	}
	return p, nil
}

// VoicePromptFor fills the caller number into the voice prompt.
func (p Prompts) VoicePromptFor(callerNumber string) string {
	return strings.ReplaceAll(p.Voice, "{caller_number}", callerNumber)
}
