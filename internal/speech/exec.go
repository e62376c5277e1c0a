// Package speech implements voice.SpeechProvider on top of external programs:
// a recognizer command that prints a transcript and an espeak-ng compatible
// synthesizer.
package speech

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/askvoice/internal/voice"
)

const (
	// DefaultTTSCommand is the synthesizer used when none is configured.
	DefaultTTSCommand = "espeak-ng"
	// DefaultLang is the recognition and synthesis language.
	DefaultLang = "en-US"

	baseSpeed = 175 // espeak-ng words per minute at rate 1
	basePitch = 50  // espeak-ng pitch at pitch 1

	waitDelay = 500 * time.Millisecond
)

// Recognizer error codes, named after the browser ones.
const (
	CodeNoSpeech     = "no-speech"
	CodeAudioCapture = "audio-capture"
	CodeAborted      = "aborted"
)

// Options configures an Exec provider.
type Options struct {
	// STTCommand is run with sh -c. Its first non-empty stdout line is the
	// transcript. Empty means recognition is unsupported.
	STTCommand string
	// TTSCommand must accept espeak-ng flags. Defaults to espeak-ng.
	TTSCommand string
	Lang       string
	Rate       float64
	Pitch      float64
	Logger     *slog.Logger
}

// Exec runs recognition and synthesis as child processes. Stopping either
// kills the process.
type Exec struct {
	opts    Options
	ttsPath string
	logger  *slog.Logger

	mu  sync.Mutex
	rec *process
	tts *process
}

var _ voice.SpeechProvider = (*Exec)(nil)

type process struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExec resolves the synthesizer binary and returns a provider. A missing
// synthesizer makes Speak report voice.ErrUnsupported.
func NewExec(opts Options) *Exec {
	if opts.TTSCommand == "" {
		opts.TTSCommand = DefaultTTSCommand
	}
	if opts.Lang == "" {
		opts.Lang = DefaultLang
	}
	if opts.Rate <= 0 {
		opts.Rate = 1
	}
	if opts.Pitch <= 0 {
		opts.Pitch = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exec{opts: opts, logger: logger}
	if path, err := exec.LookPath(opts.TTSCommand); err == nil {
		e.ttsPath = path
	} else {
		logger.Warn("Speech synthesizer not found, answers will not be spoken", "command", opts.TTSCommand)
	}
	return e
}

// StartRecognition launches the recognizer command and returns once it is
// running.
func (e *Exec) StartRecognition(onResult func(string), onError func(string), onEnd func()) error {
	if strings.TrimSpace(e.opts.STTCommand) == "" {
		return voice.ErrUnsupported
	}

	e.StopRecognition()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "sh", "-c", e.opts.STTCommand)
	cmd.Env = append(cmd.Environ(), "VOICE_LANG="+e.opts.Lang)
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recognizer: %w", err)
	}

	p := &process{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.rec = p
	e.mu.Unlock()

	e.logger.Debug("Recognition started", "pid", cmd.Process.Pid)

	go func() {
		defer close(p.done)
		err := cmd.Wait()
		aborted := ctx.Err() != nil
		cancel()

		e.mu.Lock()
		if e.rec == p {
			e.rec = nil
		}
		e.mu.Unlock()

		switch {
		case aborted:
			onError(CodeAborted)
		case err != nil:
			e.logger.Warn("Recognizer failed", "error", err)
			onError(CodeAudioCapture)
		default:
			if transcript := firstLine(out.Bytes()); transcript != "" {
				onResult(transcript)
			} else {
				onError(CodeNoSpeech)
			}
		}
		onEnd()
	}()

	return nil
}

// StopRecognition kills the running recognizer, if any.
func (e *Exec) StopRecognition() {
	e.mu.Lock()
	p := e.rec
	e.rec = nil
	e.mu.Unlock()

	if p != nil {
		p.cancel()
	}
}

// Speak starts the synthesizer and returns without waiting for playback.
func (e *Exec) Speak(text string) error {
	if e.ttsPath == "" {
		return voice.ErrUnsupported
	}

	e.CancelSpeech()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, e.ttsPath, e.ttsArgs()...)
	cmd.Stdin = strings.NewReader(text)
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start synthesizer: %w", err)
	}

	p := &process{cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.tts = p
	e.mu.Unlock()

	go func() {
		defer close(p.done)
		err := cmd.Wait()
		if err != nil && ctx.Err() == nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				e.logger.Warn("Synthesizer exited with error", "code", exitErr.ExitCode())
			} else {
				e.logger.Warn("Synthesizer failed", "error", err)
			}
		}
		cancel()

		e.mu.Lock()
		if e.tts == p {
			e.tts = nil
		}
		e.mu.Unlock()
	}()

	return nil
}

// CancelSpeech kills the running synthesizer, if any.
func (e *Exec) CancelSpeech() {
	e.mu.Lock()
	p := e.tts
	e.tts = nil
	e.mu.Unlock()

	if p != nil {
		p.cancel()
	}
}

// WaitSpeech blocks until the current playback ends or ctx is done.
func (e *Exec) WaitSpeech(ctx context.Context) {
	e.mu.Lock()
	p := e.tts
	e.mu.Unlock()

	if p == nil {
		return
	}
	select {
	case <-p.done:
	case <-ctx.Done():
	}
}

func (e *Exec) ttsArgs() []string {
	speed := int(math.Round(baseSpeed * e.opts.Rate))
	pitch := int(math.Round(basePitch * e.opts.Pitch))
	pitch = min(max(pitch, 0), 99)

	return []string{
		"-v", voiceName(e.opts.Lang),
		"-s", strconv.Itoa(speed),
		"-p", strconv.Itoa(pitch),
		"--stdin",
	}
}

// voiceName maps a BCP 47 tag to an espeak-ng voice, en-US -> en-us.
func voiceName(lang string) string {
	return strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
}

func firstLine(out []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
