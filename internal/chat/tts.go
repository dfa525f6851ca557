package chat

import (
	"context"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/soluna-labs/talkgate/internal/voice"
)

// Synthesizer is the external speech collaborator.
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.SynthesisRequest) (voice.SynthesisResponse, error)
}

// Synthesis is the outcome of the speech stage.
type Synthesis struct {
	Audio        *AudioPayload
	Success      bool
	ErrorMessage string
}

// TTSHandler validates synthesis input against the voice catalog before
// making any network call, then calls the vendor once.
type TTSHandler struct {
	client  Synthesizer
	catalog *voice.Catalog
}

func NewTTSHandler(client Synthesizer, catalog *voice.Catalog) *TTSHandler {
	return &TTSHandler{client: client, catalog: catalog}
}

func (h *TTSHandler) Synthesize(ctx context.Context, text, voiceName, style, language string, settings *voice.Settings) Synthesis {
	profile, ok := h.catalog.Get(voiceName)
	if !ok {
		return invalid(fmt.Sprintf("unknown voice %q", voiceName))
	}
	if text == "" {
		return invalid("synthesis text is empty")
	}
	if n := utf8.RuneCountInString(text); n > voice.MaxTextLength {
		return invalid(fmt.Sprintf("synthesis text is %d characters, limit is %d", n, voice.MaxTextLength))
	}
	if language == "" {
		language = profile.DefaultLanguage
	}
	if !voice.LanguageSupported(language) {
		return invalid(fmt.Sprintf("unsupported language %q", language))
	}
	if style == "" {
		style = profile.DefaultStyle
	}
	if style != "" && !profile.SupportsStyle(style) {
		return invalid(fmt.Sprintf("voice %q does not support style %q", voiceName, style))
	}
	if settings != nil {
		if settings.PitchShift < voice.MinPitchShift || settings.PitchShift > voice.MaxPitchShift {
			return invalid(fmt.Sprintf("pitch shift %d out of range", settings.PitchShift))
		}
		if settings.PitchVariance < voice.MinPitchVariance || settings.PitchVariance > voice.MaxPitchVariance {
			return invalid(fmt.Sprintf("pitch variance %.2f out of range", settings.PitchVariance))
		}
		if settings.Speed <= 0 {
			return invalid("speed must be positive")
		}
	}

	resp, err := h.client.Synthesize(ctx, voice.SynthesisRequest{
		VoiceID:  profile.VoiceID,
		Text:     text,
		Language: language,
		Style:    style,
		Model:    profile.Model,
		Settings: settings,
	})
	if err != nil {
		log.Printf("[chat] synthesis request failed: %v", err)
		return Synthesis{ErrorMessage: "speech synthesis request failed"}
	}
	if !resp.Success {
		log.Printf("[chat] synthesis unsuccessful: %s", resp.ErrorMessage)
		return Synthesis{ErrorMessage: resp.ErrorMessage}
	}
	return Synthesis{
		Audio: &AudioPayload{
			Data:            resp.Audio,
			ContentType:     resp.ContentType,
			DurationSeconds: resp.DurationSeconds,
		},
		Success: true,
	}
}

func invalid(msg string) Synthesis {
	return Synthesis{ErrorMessage: msg}
}
