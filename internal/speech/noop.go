package speech

import (
	"log/slog"

	"github.com/ashureev/askvoice/internal/voice"
)

var _ voice.SpeechProvider = (*NoOp)(nil)

// NoOp is a speech provider that does nothing. Used when voice is muted.
type NoOp struct {
	logger *slog.Logger
}

// NewNoOp creates a no-op speech provider.
func NewNoOp(logger *slog.Logger) *NoOp {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoOp{logger: logger}
}

// StartRecognition always reports voice.ErrUnsupported.
func (n *NoOp) StartRecognition(func(string), func(string), func()) error {
	return voice.ErrUnsupported
}

func (n *NoOp) StopRecognition() {}

// Speak does nothing.
func (n *NoOp) Speak(text string) error {
	n.logger.Debug("speech muted", "chars", len(text))
	return nil
}

func (n *NoOp) CancelSpeech() {}
