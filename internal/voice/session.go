package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ashureev/askvoice/internal/backend"
)

// Option configures a Session.
type Option func(*Session)

// WithSpeech sets the speech provider. Without one, recognition reports
// unsupported and speech is a no-op.
func WithSpeech(p SpeechProvider) Option {
	return func(s *Session) { s.speech = p }
}

// WithNotify registers a callback invoked with a snapshot after every state
// transition. It may be called from any goroutine.
func WithNotify(fn func(State)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// Session is the question/answer state of one voice UI.
//
// A newer AskQuestion cancels the call still in flight and the older result
// is dropped; Loading stays true until the newest call resolves. A newer
// StartListening or a StopListening detaches the previous recognition and
// its late callbacks are ignored.
type Session struct {
	asker  Asker
	speech SpeechProvider
	notify func(State)
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	askSeq    uint64
	cancelAsk context.CancelFunc
	recogGen  uint64
	recogDone uint64 // last recognition generation that ended
}

// NewSession creates a session that asks through asker.
func NewSession(asker Asker, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		asker:  asker,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetQuestion updates the pending question text without submitting it.
func (s *Session) SetQuestion(text string) {
	s.update(func(st *State) { st.Question = text })
}

// Close cancels in-flight asks and releases the speech capabilities.
func (s *Session) Close() {
	s.cancel()
	s.StopListening()
	if s.speech != nil {
		s.speech.CancelSpeech()
	}
}

// AskQuestion submits text and blocks until the answer or error is applied.
// Blank text is ignored without any state change.
func (s *Session) AskQuestion(ctx context.Context, text string) {
	call, ok := s.beginAsk(ctx, text)
	if !ok {
		return
	}
	s.finishAsk(call)
}

type askCall struct {
	ctx      context.Context
	cancel   context.CancelFunc
	seq      uint64
	question string
}

func (s *Session) beginAsk(parent context.Context, text string) (*askCall, bool) {
	question := strings.TrimSpace(text)
	if question == "" {
		return nil, false
	}

	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.cancelAsk != nil {
		s.cancelAsk()
	}
	s.askSeq++
	call := &askCall{ctx: ctx, cancel: cancel, seq: s.askSeq, question: question}
	s.cancelAsk = cancel
	s.state.Question = question
	s.state.Loading = true
	s.state.Error = ""
	snap := s.state.clone()
	s.mu.Unlock()

	s.emit(snap)
	return call, true
}

func (s *Session) finishAsk(call *askCall) {
	var (
		answer *backend.Answer
		err    error
	)

	// Deferred so Loading is cleared even if the asker panics.
	defer func() {
		call.cancel()

		s.mu.Lock()
		if call.seq != s.askSeq {
			s.mu.Unlock()
			s.logger.Debug("Discarding superseded answer", "question", call.question)
			return
		}
		s.cancelAsk = nil
		s.state.Loading = false
		switch {
		case err != nil:
			s.state.Error = ErrorMessage(err)
		case answer == nil:
			s.state.Error = MsgSomethingWrong
		default:
			s.state.Answer = answer.Answer
			s.state.Route = answer.Route
			s.state.Sources = append([]backend.Source(nil), answer.Sources...)
		}
		snap := s.state.clone()
		s.mu.Unlock()

		s.emit(snap)
		if err != nil {
			s.logger.Warn("Question failed", "error", err)
			return
		}
		if answer != nil {
			s.Speak(answer.Answer)
		}
	}()

	answer, err = s.asker.Ask(call.ctx, call.question)
}

// Speak cancels any playback in progress and speaks text.
func (s *Session) Speak(text string) {
	if s.speech == nil {
		return
	}
	s.speech.CancelSpeech()
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := s.speech.Speak(text); err != nil && !errors.Is(err, ErrUnsupported) {
		s.logger.Warn("Speech playback failed", "error", err)
	}
}

// StartListening starts a recognition session. Failures are recorded in the
// state, never returned.
func (s *Session) StartListening() {
	if s.speech == nil {
		s.update(func(st *State) { st.Error = MsgRecognitionUnsupported })
		return
	}

	s.mu.Lock()
	wasListening := s.state.Listening
	s.recogGen++
	gen := s.recogGen
	s.mu.Unlock()

	if wasListening {
		s.speech.StopRecognition()
	}

	err := s.speech.StartRecognition(
		func(transcript string) { s.onRecognitionResult(gen, transcript) },
		func(code string) { s.onRecognitionError(gen, code) },
		func() { s.onRecognitionEnd(gen) },
	)

	s.mu.Lock()
	switch {
	case errors.Is(err, ErrUnsupported):
		s.state.Listening = false
		s.state.Error = MsgRecognitionUnsupported
	case err != nil:
		s.state.Listening = false
		s.state.Error = RecognizerError(err.Error())
	case gen == s.recogGen && s.recogDone != gen:
		s.state.Listening = true
		s.state.Error = ""
	}
	snap := s.state.clone()
	s.mu.Unlock()

	s.emit(snap)
}

// StopListening cancels the active recognition, if any, and always leaves
// Listening false.
func (s *Session) StopListening() {
	s.mu.Lock()
	s.recogGen++
	s.mu.Unlock()

	if s.speech != nil {
		s.speech.StopRecognition()
	}
	s.update(func(st *State) { st.Listening = false })
}

func (s *Session) onRecognitionResult(gen uint64, transcript string) {
	s.mu.Lock()
	current := gen == s.recogGen
	s.mu.Unlock()
	if !current {
		return
	}

	call, ok := s.beginAsk(s.ctx, transcript)
	if !ok {
		return
	}
	go s.finishAsk(call)
}

func (s *Session) onRecognitionError(gen uint64, code string) {
	s.mu.Lock()
	if gen != s.recogGen {
		s.mu.Unlock()
		return
	}
	s.recogDone = gen
	s.state.Listening = false
	s.state.Error = RecognizerError(code)
	snap := s.state.clone()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Session) onRecognitionEnd(gen uint64) {
	s.mu.Lock()
	if gen != s.recogGen {
		s.mu.Unlock()
		return
	}
	s.recogDone = gen
	s.state.Listening = false
	snap := s.state.clone()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Session) update(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	snap := s.state.clone()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Session) emit(snap State) {
	if s.notify != nil {
		s.notify(snap)
	}
}
