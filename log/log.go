package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
)

type Format int

const (
	FormatJSON Format = iota
	FormatText
)

type options struct {
	w      io.Writer
	format Format
	opts   *slog.HandlerOptions
	args   []any
}

type Option func(*options)

func WithWriter(w io.Writer) Option {
	return func(opts *options) {
		opts.w = w
	}
}

func WithFormat(format Format) Option {
	return func(opts *options) {
		opts.format = format
	}
}

func WithHandlerOptions(ho *slog.HandlerOptions) Option {
	return func(opts *options) {
		opts.opts = ho
	}
}

func WithSource(add bool) Option {
	return func(opts *options) {
		opts.opts.AddSource = add
	}
}

func WithLevel(level slog.Level) Option {
	return func(opts *options) {
		opts.opts.Level = level
	}
}

func WithAttrs(args ...any) Option {
	return func(opts *options) {
		opts.args = append(opts.args[:0], args...)
	}
}

// New builds a logger without touching the process default.
func New(opt ...Option) *slog.Logger {
	opts := options{
		w:    os.Stdout,
		opts: &slog.HandlerOptions{AddSource: true},
	}

	for _, v := range opt {
		v(&opts)
	}

	var h slog.Handler
	switch opts.format {
	case FormatText:
		h = slog.NewTextHandler(opts.w, opts.opts)
	default:
		h = slog.NewJSONHandler(opts.w, opts.opts)
	}

	return slog.New(h).With(opts.args...)
}

func Init(opt ...Option) {
	slog.SetDefault(New(opt...))
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, errors.Wrapf(err, "log: parse level %q", s)
	}
	return level, nil
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return 0, errors.Errorf("log: unknown format %q", s)
	}
}
