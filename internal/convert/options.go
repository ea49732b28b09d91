package convert

import (
	"io"
	"log/slog"

	"github.com/dgallion1/richconv/internal/markup"
)

// DefaultMaxDepth bounds recursion so a pathological tree fails the call
// instead of growing the stack without limit.
const DefaultMaxDepth = 512

// Direction names a conversion direction, for observers and logs.
type Direction string

const (
	Deserializing Direction = "deserialize"
	Serializing   Direction = "serialize"
)

// Observer is told about every fallback the converter applies. It must be
// safe for concurrent use.
type Observer interface {
	Fallback(dir Direction, name string)
}

// ParseFunc turns markup text into a markup tree.
type ParseFunc func(r io.Reader) ([]markup.Node, error)

// PrintFunc turns a markup tree into markup text.
type PrintFunc func(nodes []markup.Node) (string, error)

// Options holds converter settings.
type Options struct {
	MaxDepth int
	Parse    ParseFunc
	Print    PrintFunc
	Logger   *slog.Logger
	Observer Observer
}

// Option is a function that configures Options.
type Option func(*Options)

// WithMaxDepth sets the nesting limit. n <= 0 disables the limit.
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		o.MaxDepth = n
	}
}

// WithParser replaces the markup parser used by Deserialize.
func WithParser(p ParseFunc) Option {
	return func(o *Options) {
		o.Parse = p
	}
}

// WithPrinter replaces the markup printer used by Serialize.
func WithPrinter(p PrintFunc) Option {
	return func(o *Options) {
		o.Print = p
	}
}

// WithLogger sets the logger fallbacks are reported to at debug level.
func WithLogger(log *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

// WithObserver sets a fallback observer.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

func defaultOptions() *Options {
	return &Options{
		MaxDepth: DefaultMaxDepth,
		Parse:    markup.ParseHTML,
		Print:    markup.RenderHTMLString,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func applyOptions(opts ...Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Parse == nil {
		options.Parse = markup.ParseHTML
	}
	if options.Print == nil {
		options.Print = markup.RenderHTMLString
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return options
}
