package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"github.com/lmittmann/tint"

	"github.com/ashureev/askvoice/internal/backend"
	"github.com/ashureev/askvoice/internal/speech"
	"github.com/ashureev/askvoice/internal/tui"
	"github.com/ashureev/askvoice/internal/voice"
)

const defaultServerURL = "http://127.0.0.1:8080"

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type options struct {
	server  string
	proxy   string
	logFile string
	mute    bool
	speech  speech.Options
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	server := cli.StringP("server", "s", "", "Voice server URL (default $VOICE_SERVER_URL or "+defaultServerURL+")")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for reaching the server")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	logFile := cli.String("log-file", "", "Write logs to this file")
	sttCmd := cli.String("stt-cmd", "", "Recognizer command; prints the transcript on stdout")
	ttsCmd := cli.String("tts-cmd", speech.DefaultTTSCommand, "Synthesizer command (espeak-ng compatible)")
	lang := cli.String("lang", speech.DefaultLang, "Recognition and synthesis language")
	rate := cli.Float64("rate", 1, "Speech rate")
	pitch := cli.Float64("pitch", 1, "Speech pitch")
	mute := cli.BoolP("mute", "m", false, "Disable speech recognition and playback")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	opts := options{
		server:  resolveServer(*server),
		proxy:   *proxyAddr,
		logFile: *logFile,
		mute:    *mute,
		speech: speech.Options{
			STTCommand: *sttCmd,
			TTSCommand: *ttsCmd,
			Lang:       *lang,
			Rate:       *rate,
			Pitch:      *pitch,
		},
	}

	oneShot := cli.NArg() > 0

	logOut, closeLog, err := openLog(opts.logFile, oneShot)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open log file:", err)
		os.Exit(1)
	}

	level, ok := logLevelMap[strings.ToLower(*logLevel)]
	if !ok {
		level = log.LevelInfo
	}
	log.SetDefault(log.New(tint.NewHandler(logOut, &tint.Options{
		Level: level,
	})))

	code := 0
	if oneShot {
		code = runOnce(opts, strings.Join(cli.Args(), " "))
	} else if err := runInteractive(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	closeLog()
	os.Exit(code)
}

func resolveServer(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("VOICE_SERVER_URL"); env != "" {
		return env
	}
	return defaultServerURL
}

// openLog picks the log destination. The TUI owns the terminal, so without
// a log file interactive logs are dropped.
func openLog(path string, oneShot bool) (io.Writer, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
	if oneShot {
		return os.Stderr, func() {}, nil
	}
	return io.Discard, func() {}, nil
}

func newAsker(opts options) (*voice.Client, error) {
	var httpClient *http.Client
	if opts.proxy != "" {
		c, err := backend.NewHTTPClient(opts.proxy)
		if err != nil {
			return nil, fmt.Errorf("dial socks proxy %s: %w", opts.proxy, err)
		}
		httpClient = c
	}
	return voice.NewClient(opts.server, httpClient), nil
}

func runInteractive(opts options) error {
	asker, err := newAsker(opts)
	if err != nil {
		return err
	}

	notify, updates := tui.NewNotifier()
	session := voice.NewSession(asker,
		voice.WithSpeech(newSpeech(opts)),
		voice.WithNotify(notify),
		voice.WithLogger(log.Default()),
	)
	defer session.Close()

	log.Info("Starting voice client", "server", opts.server)

	p := tea.NewProgram(tui.New(session, updates), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func runOnce(opts options, question string) int {
	if strings.TrimSpace(question) == "" {
		fmt.Fprintln(os.Stderr, "Question is required.")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	asker, err := newAsker(opts)
	if err != nil {
		log.Error("Failed to create client", "err", err)
		return 1
	}

	provider := newSpeech(opts)
	session := voice.NewSession(asker,
		voice.WithSpeech(provider),
		voice.WithLogger(log.Default()),
	)
	defer session.Close()

	session.AskQuestion(ctx, question)

	st := session.Snapshot()
	if st.Error != "" {
		fmt.Fprintln(os.Stderr, st.Error)
		return 1
	}
	printAnswer(os.Stdout, st)

	if e, ok := provider.(*speech.Exec); ok {
		e.WaitSpeech(ctx)
	}
	return 0
}

func newSpeech(opts options) voice.SpeechProvider {
	if opts.mute {
		return speech.NewNoOp(log.Default())
	}
	opts.speech.Logger = log.Default()
	return speech.NewExec(opts.speech)
}

func printAnswer(w io.Writer, st voice.State) {
	fmt.Fprintln(w, st.Answer)
	if st.Route != "" {
		fmt.Fprintf(w, "\nroute: %s\n", st.Route)
	}
	for i, src := range st.Sources {
		if src.Score != nil {
			fmt.Fprintf(w, "[%d] %s (score %.2f)\n", i+1, src.ID, *src.Score)
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", i+1, src.ID)
	}
}
