package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName names the otelslog bridge logger.
const InstrumentationName = "github.com/volleyworks/volley"

// replaced in tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// Options selects the sinks of a SlogManager.
type Options struct {
	// File receives text logs. When nil, logs go to stdout instead.
	File  io.Writer
	Level string
	// Provider enables the OTel bridge when non-nil.
	Provider *sdklog.LoggerProvider
	// GELF receives JSON records, one per write, when non-nil.
	GELF io.Writer
	// Tick reports the current simulation tick for every record.
	Tick func() uint64
}

// SlogManager owns the process logger and the OTel provider it flushes.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names in any case. Anything else is info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

func sinks(opts Options) []slog.Handler {
	ho := &slog.HandlerOptions{Level: parseLevel(opts.Level), ReplaceAttr: utcTime}

	text := opts.File
	if text == nil {
		text = osStdout
	}
	out := []slog.Handler{slog.NewTextHandler(text, ho)}

	if opts.GELF != nil {
		out = append(out, slog.NewJSONHandler(opts.GELF, ho))
	}
	if opts.Provider != nil {
		out = append(out, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(opts.Provider)))
	}
	return out
}

// Setup builds the logger from opts. Calling it again replaces the logger.
func (m *SlogManager) Setup(opts Options) {
	var handler slog.Handler = NewMultiHandler(sinks(opts)...)
	if tick := opts.Tick; tick != nil {
		handler = NewContextHandler(handler, func() []slog.Attr {
			return []slog.Attr{slog.Uint64(TickKey, tick())}
		})
	}

	m.provider = opts.Provider
	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", opts.Level)
}

// Logger falls back to slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush exports pending OTel records, if a provider is set.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
