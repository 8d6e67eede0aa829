package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cataloghq/cataloghq/pkg/environment"
)

// Format selects the log output encoding.
type Format string

const (
	FormatJSON Format = "json" // structured output for log aggregation
	FormatText Format = "text" // human-readable output for development
)

type config struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// Option configures logger creation.
type Option func(*config)

func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat sets the output encoding. Panics on unknown formats so a typo
// in configuration stops startup instead of silently logging JSON.
func WithFormat(f Format) Option {
	return func(c *config) {
		switch f {
		case FormatJSON, FormatText:
			c.format = f
		default:
			panic(fmt.Errorf("invalid log format %q", f))
		}
	}
}

// WithOutput redirects log output; nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output = w
		}
	}
}

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

// WithContextExtractors registers functions that pull request-scoped
// attributes out of the context at log time. Nil extractors are dropped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(c *config) {
		for _, ex := range extractors {
			if ex != nil {
				c.extractors = append(c.extractors, ex)
			}
		}
	}
}

// WithEnvironment applies per-environment defaults: text at debug level for
// development, JSON at info level elsewhere. The service name and
// environment are attached to every record.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(c *config) {
		switch env {
		case environment.Production, "prod", environment.Staging, "stage":
			c.level = slog.LevelInfo
			c.format = FormatJSON
		default:
			env = environment.Development
			c.level = slog.LevelDebug
			c.format = FormatText
		}
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
		c.attrs = append(c.attrs, slog.String("env", string(env)))
	}
}

// New builds a slog.Logger. Defaults are production-safe: JSON to stdout at
// info level.
func New(opts ...Option) *slog.Logger {
	cfg := &config{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}

	var handler slog.Handler
	if cfg.format == FormatText {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	}
	if len(cfg.attrs) > 0 {
		handler = handler.WithAttrs(cfg.attrs)
	}

	return slog.New(newContextHandler(handler, cfg.extractors))
}

// SetAsDefault installs l as the process-wide slog default.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
