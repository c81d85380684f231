// Package woopsa implements the Woopsa object-access protocol request
// engine: a streaming HTTP framer, a URL-form body decoder, a flat
// catalog dispatcher, and a bounded JSON response assembler, all
// operating over two caller-provided byte buffers.
package woopsa

import (
	"sync"

	"github.com/woopsa-protocol/woopsa/internal/wlog"
	"github.com/woopsa-protocol/woopsa/wcatalog"
	"github.com/woopsa-protocol/woopsa/wframe"
)

// Outcome classifies the result of a Handle call.
type Outcome int

const (
	// Success means a recognized Woopsa verb completed; the body is
	// the JSON value or manifest.
	Success Outcome = iota
	// OtherResponse means the fallback handler produced content for a
	// path outside the configured prefix.
	OtherResponse
	// ClientRequestError means the request was malformed, named an
	// unknown path, or attempted a disallowed write.
	ClientRequestError
	// OtherError means an internal invariant was violated.
	OtherError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case OtherResponse:
		return "OtherResponse"
	case ClientRequestError:
		return "ClientRequestError"
	case OtherError:
		return "OtherError"
	default:
		return "Unknown"
	}
}

// Error carries both the outcome's exact HTTP status and the reason
// phrase already written into the response body, so a caller can
// recover precise diagnostics without re-parsing the output buffer.
type Error struct {
	Code   int
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// InternalError wraps a condition that violates a core invariant
// (buffer overflow promoted to a 500, a catalog entry with an
// unrecognized type tag, a failed PropertyBinding.Set or method call).
// It is the concrete error returned alongside OtherError. A binding
// value whose dynamic type does not match its entry's Type is not
// detected: it is rendered as that type's zero value.
type InternalError struct {
	Reason string
	Err    error
}

func (e *InternalError) Error() string { return e.Reason }
func (e *InternalError) Unwrap() error { return e.Err }

// FallbackHandler serves requests whose path does not match the
// configured prefix. Returning 0 means "no resource at this path"
// and yields a 404.
type FallbackHandler func(path string, isPost bool, out []byte) (n int)

const defaultScratchSize = 256

// Config holds a Server's tunable settings, with sane defaults
// supplied by DefaultConfig.
type Config struct {
	// ScratchSize is the size of the buffers in the Server's scratch
	// pool. Handle does not draw from that pool, so this setting does
	// not bound URL, header, or form-value length.
	ScratchSize int

	// Logger receives OtherError diagnostics. Defaults to a console
	// logger at info level.
	Logger *wlog.Logger
}

// DefaultConfig returns a Config with sane defaults:
//   - ScratchSize: 256 bytes
//   - Logger: a console logger at info level
func DefaultConfig() Config {
	return Config{
		ScratchSize: defaultScratchSize,
		Logger:      wlog.New(nil, wlog.InfoLevel),
	}
}

// Option mutates a Config at construction time; each With* helper is
// sugar over setting the matching Config field directly.
type Option func(*Config)

// WithScratchSize overrides Config.ScratchSize.
func WithScratchSize(size int) Option {
	return func(c *Config) {
		c.ScratchSize = size
	}
}

// WithLogger overrides Config.Logger.
func WithLogger(l *wlog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Server holds the immutable configuration for one Woopsa endpoint:
// the path prefix, the catalog, and the optional fallback handler.
//
// A Server is safe for concurrent use by multiple goroutines calling
// Handle simultaneously: Handle keeps no per-call state on the Server.
// A scratch pool sized by Config.ScratchSize is set up at construction,
// but Handle does not draw from it; request-line parsing and form
// decoding work on the request slice and on Go strings.
type Server struct {
	prefix      string
	catalog     *wcatalog.Catalog
	fallback    FallbackHandler
	scratchSize int
	scratchPool sync.Pool
	log         *wlog.Logger
}

// New builds a Server bound to prefix (e.g. "/woopsa/") and catalog,
// applying DefaultConfig and then any Option overrides. fallback may
// be nil, in which case any request outside prefix yields a 404.
func New(prefix string, catalog *wcatalog.Catalog, fallback FallbackHandler, opts ...Option) *Server {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(prefix, catalog, fallback, cfg)
}

// NewWithConfig builds a Server from an explicit Config, the same
// pattern the rest of this codebase's stack uses for its own servers.
func NewWithConfig(prefix string, catalog *wcatalog.Catalog, fallback FallbackHandler, cfg Config) *Server {
	s := &Server{
		prefix:      prefix,
		catalog:     catalog,
		fallback:    fallback,
		scratchSize: cfg.ScratchSize,
		log:         cfg.Logger,
	}
	if s.scratchSize <= 0 {
		s.scratchSize = defaultScratchSize
	}
	if s.log == nil {
		s.log = wlog.New(nil, wlog.InfoLevel)
	}
	s.scratchPool.New = func() any {
		b := make([]byte, s.scratchSize)
		return &b
	}
	return s
}

// CheckComplete reports whether buf currently holds one complete HTTP
// request. It delegates to wframe and never mutates buf.
func (s *Server) CheckComplete(buf []byte) wframe.Status {
	return wframe.CheckRequestComplete(buf)
}

// Prefix returns the path prefix this Server was constructed with.
func (s *Server) Prefix() string {
	return s.prefix
}

func (s *Server) getScratch() []byte {
	p := s.scratchPool.Get().(*[]byte)
	b := *p
	for i := range b {
		b[i] = 0
	}
	return b
}

func (s *Server) putScratch(b []byte) {
	s.scratchPool.Put(&b)
}
