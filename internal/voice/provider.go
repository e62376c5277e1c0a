// Package voice holds the state machine behind the voice question UI:
// capture a question (typed or spoken), ask it, show the result and speak it.
package voice

import (
	"context"
	"errors"

	"github.com/ashureev/askvoice/internal/backend"
)

// ErrUnsupported reports that a speech capability is absent on this platform.
var ErrUnsupported = errors.New("speech capability not supported")

// SpeechProvider abstracts the platform recognizer and synthesizer.
//
// StartRecognition begins one recognition session and returns without
// waiting for it. The callbacks may run on any goroutine: onResult receives
// the best final transcript, onError a platform error code, and onEnd fires
// once when the session is over. It returns ErrUnsupported when the
// recognizer is absent.
//
// Speak starts playback and returns without waiting for it to finish; it
// returns ErrUnsupported when the synthesizer is absent.
type SpeechProvider interface {
	StartRecognition(onResult func(transcript string), onError func(code string), onEnd func()) error
	StopRecognition()
	Speak(text string) error
	CancelSpeech()
}

// Asker submits one question and returns the backend's answer.
type Asker interface {
	Ask(ctx context.Context, question string) (*backend.Answer, error)
}
