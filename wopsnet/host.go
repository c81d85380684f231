// Package wopsnet is the reference TCP host for a woopsa.Server: a
// gnet-based accept/read/write loop, per-IP rate limiting, and an
// ants-bounded worker pool for fallback handlers that need to block.
// None of this is part of the protocol core — §1 explicitly leaves
// "TCP accept/read/write loop" to the host — this package is simply a
// concrete, runnable one.
package wopsnet

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/woopsa-protocol/woopsa"
	"github.com/woopsa-protocol/woopsa/internal/wlog"
	"github.com/woopsa-protocol/woopsa/wframe"
)

// noopGnetLogger silences gnet's own logging; this host reports
// through internal/wlog instead.
type noopGnetLogger struct{}

func (noopGnetLogger) Debugf(string, ...interface{}) {}
func (noopGnetLogger) Infof(string, ...interface{})  {}
func (noopGnetLogger) Warnf(string, ...interface{})  {}
func (noopGnetLogger) Errorf(string, ...interface{}) {}
func (noopGnetLogger) Fatalf(string, ...interface{}) {}

const (
	defaultOutputSize = 8192
	defaultPoolSize   = 64
	defaultRPS        = 50
	defaultBurst      = 100
	visitorExpiresIn  = 10 * time.Minute
)

// Config holds a Host's tunable settings, with sane defaults supplied
// by DefaultConfig.
type Config struct {
	// Multicore enables gnet's multi-event-loop mode.
	Multicore bool

	// RequestsPerSecond and Burst set the per-IP budget of new
	// connections; each accepted connection spends one token, however
	// many requests it carries. A zero RequestsPerSecond disables
	// limiting entirely.
	RequestsPerSecond float64
	Burst             int

	// WorkerPoolSize bounds the goroutine pool used to run
	// potentially-blocking FallbackHandler calls off the gnet event
	// loop.
	WorkerPoolSize int

	// OutputBufferSize sets the size of the per-request output buffer
	// handed to woopsa.Server.Handle.
	OutputBufferSize int

	// FastPathPrecheck enables the wildcat-based pre-check described
	// in §4.2a: before a complete-looking buffer reaches the core, a
	// cheap wildcat parse run rejects connections that are not valid
	// HTTP at all. It never changes the core's own verdict, only adds
	// an extra early-close path at the host layer.
	FastPathPrecheck bool

	// Logger receives diagnostics. Defaults to a console logger at
	// info level.
	Logger *wlog.Logger
}

// DefaultConfig returns a Config with sane defaults:
//   - Multicore: true
//   - RequestsPerSecond/Burst: 50/100
//   - WorkerPoolSize: 64
//   - OutputBufferSize: 8192
//   - FastPathPrecheck: false
//   - Logger: a console logger at info level
func DefaultConfig() Config {
	return Config{
		Multicore:         true,
		RequestsPerSecond: defaultRPS,
		Burst:             defaultBurst,
		WorkerPoolSize:    defaultPoolSize,
		OutputBufferSize:  defaultOutputSize,
		Logger:            wlog.New(nil, wlog.InfoLevel),
	}
}

// HostOption mutates a Config at construction time; each With* helper
// is sugar over setting the matching Config field directly.
type HostOption func(*Config)

// WithMulticore overrides Config.Multicore.
func WithMulticore(on bool) HostOption {
	return func(c *Config) { c.Multicore = on }
}

// WithRateLimit overrides Config.RequestsPerSecond and Config.Burst.
func WithRateLimit(requestsPerSecond float64, burst int) HostOption {
	return func(c *Config) { c.RequestsPerSecond, c.Burst = requestsPerSecond, burst }
}

// WithWorkerPoolSize overrides Config.WorkerPoolSize.
func WithWorkerPoolSize(n int) HostOption {
	return func(c *Config) { c.WorkerPoolSize = n }
}

// WithOutputBufferSize overrides Config.OutputBufferSize.
func WithOutputBufferSize(n int) HostOption {
	return func(c *Config) { c.OutputBufferSize = n }
}

// WithLogger overrides Config.Logger.
func WithLogger(l *wlog.Logger) HostOption {
	return func(c *Config) { c.Logger = l }
}

// WithFastPathPrecheck overrides Config.FastPathPrecheck.
func WithFastPathPrecheck(on bool) HostOption {
	return func(c *Config) { c.FastPathPrecheck = on }
}

// Host adapts a woopsa.Server to a gnet.BuiltinEventEngine, giving it
// a real TCP accept/read/write loop.
type Host struct {
	gnet.BuiltinEventEngine

	server     *woopsa.Server
	multicore  bool
	outputSize int
	poolSize   int
	rps        float64
	burst      int
	fastPath   bool
	log        *wlog.Logger

	eng      gnet.Engine
	limiters *visitorLimiters
	pool     *ants.Pool
	stopCh   chan struct{}
}

// NewHost builds a Host serving server, applying DefaultConfig and
// then any HostOption overrides. Call Listen to start it.
func NewHost(server *woopsa.Server, opts ...HostOption) *Host {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewHostWithConfig(server, cfg)
}

// NewHostWithConfig builds a Host from an explicit Config, the same
// pattern woopsa.NewWithConfig uses for the request engine itself.
func NewHostWithConfig(server *woopsa.Server, cfg Config) *Host {
	h := &Host{
		server:     server,
		multicore:  cfg.Multicore,
		outputSize: cfg.OutputBufferSize,
		poolSize:   cfg.WorkerPoolSize,
		rps:        cfg.RequestsPerSecond,
		burst:      cfg.Burst,
		fastPath:   cfg.FastPathPrecheck,
		log:        cfg.Logger,
		stopCh:     make(chan struct{}),
	}
	if h.outputSize <= 0 {
		h.outputSize = defaultOutputSize
	}
	if h.poolSize <= 0 {
		h.poolSize = defaultPoolSize
	}
	if h.log == nil {
		h.log = wlog.New(nil, wlog.InfoLevel)
	}
	return h
}

// Listen starts accepting connections at addr (host:port, TCP) and
// blocks until the engine stops.
func (h *Host) Listen(addr string) error {
	if h.rps > 0 {
		h.limiters = newVisitorLimiters(h.rps, h.burst, visitorExpiresIn)
		go h.limiters.runCleanupLoop(h.stopCh)
	}

	pool, err := ants.NewPool(h.poolSize)
	if err != nil {
		return fmt.Errorf("wopsnet: building worker pool: %w", err)
	}
	h.pool = pool

	h.log.Info().Msgf("woopsa host listening on %s", addr)
	return gnet.Run(
		h,
		"tcp://"+addr,
		gnet.WithMulticore(h.multicore),
		gnet.WithReuseAddr(true),
		gnet.WithReusePort(true),
		gnet.WithLogger(noopGnetLogger{}),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
	)
}

// Shutdown stops the engine and the worker pool.
func (h *Host) Shutdown(ctx context.Context) error {
	close(h.stopCh)
	if h.pool != nil {
		h.pool.Release()
	}
	return h.eng.Stop(ctx)
}

func (h *Host) OnBoot(eng gnet.Engine) gnet.Action {
	h.eng = eng
	return gnet.None
}

func (h *Host) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	if h.limiters != nil {
		ip := remoteIP(c)
		if !h.limiters.allow(ip) {
			h.log.Warn().Msgf("rate limit exceeded, closing connection from %s", ip)
			return nil, gnet.Close
		}
	}
	if h.fastPath {
		c.SetContext(newFastPathParser())
	}
	return nil, gnet.None
}

func remoteIP(c gnet.Conn) string {
	addr := c.RemoteAddr()
	if addr == nil {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

// OnTraffic drains every complete request currently buffered for the
// connection, dispatching each through the woopsa request engine.
// Requests inside the woopsa prefix are answered inline before the
// next pipelined request is examined; requests bound for the fallback
// handler go to the worker pool and are answered with AsyncWrite, so
// their responses can reach the client after those of later requests.
func (h *Host) OnTraffic(c gnet.Conn) gnet.Action {
	buf, _ := c.Peek(-1)
	processed := 0

	for processed < len(buf) {
		region := buf[processed:]
		status := h.server.CheckComplete(region)
		if status != wframe.Complete {
			break
		}
		if h.fastPath {
			if fp, ok := c.Context().(*fastPathParser); ok && fp.looksMalformed(region) {
				h.log.Warn().Msg("fast-path precheck rejected a buffer wframe considered complete")
				return gnet.Close
			}
		}
		reqLen := requestLength(region)
		if reqLen <= 0 {
			break
		}
		request := region[:reqLen]

		if isBlockingFallbackCandidate(request, h.server) {
			h.dispatchAsync(c, request)
		} else {
			h.respond(request, c.Write)
		}

		processed += reqLen
	}

	if processed > 0 {
		c.Discard(processed)
	}
	return gnet.None
}

// dispatchAsync runs a request through the worker pool instead of
// inline, for requests likely to hit a FallbackHandler that blocks
// (disk or network I/O the core cannot see into). The request bytes
// are copied since c's buffer is only valid for the duration of this
// OnTraffic call. The response is written back with AsyncWrite, since
// only the event-loop goroutine that owns c may call Write directly;
// the response buffer is freshly allocated rather than pool-borrowed,
// since AsyncWrite hands it to the event loop to flush on its own
// schedule and a pooled buffer could be reused out from under it
// before that happens.
func (h *Host) dispatchAsync(c gnet.Conn, request []byte) {
	owned := append([]byte(nil), request...)
	err := h.pool.Submit(func() {
		out := make([]byte, h.outputSize)
		n, outcome, handleErr := h.server.Handle(owned, out)
		if handleErr != nil && outcome == woopsa.OtherError {
			h.log.Error().Err(handleErr).Msg("request handling produced an internal error")
		}
		if writeErr := c.AsyncWrite(out[:n], nil); writeErr != nil {
			h.log.Error().Err(writeErr).Msg("writing response to connection failed")
		}
	})
	if err != nil {
		h.log.Error().Err(err).Msg("worker pool submit failed, handling inline")
		h.respond(owned, c.Write)
	}
}

func (h *Host) respond(request []byte, write func([]byte) (int, error)) {
	out := bytebufferpool.Get()
	defer bytebufferpool.Put(out)
	if cap(out.B) < h.outputSize {
		out.B = make([]byte, h.outputSize)
	} else {
		out.B = out.B[:h.outputSize]
	}

	n, outcome, err := h.server.Handle(request, out.B)
	if err != nil && outcome == woopsa.OtherError {
		h.log.Error().Err(err).Msg("request handling produced an internal error")
	}
	if _, writeErr := write(out.B[:n]); writeErr != nil {
		h.log.Error().Err(writeErr).Msg("writing response to connection failed")
	}
}

// isBlockingFallbackCandidate reports whether request's target falls
// outside the woopsa prefix and therefore would be served by the
// host's FallbackHandler, which may block.
func isBlockingFallbackCandidate(request []byte, server *woopsa.Server) bool {
	return !targetHasPrefix(request, server.Prefix())
}

// targetHasPrefix scans the request line for its target (the second
// space-delimited field) and reports whether it starts with prefix,
// without fully parsing the request the way woopsa.Handle itself
// does.
func targetHasPrefix(request []byte, prefix string) bool {
	lineEnd := len(request)
	for i := 0; i+1 < len(request); i++ {
		if request[i] == '\r' && request[i+1] == '\n' {
			lineEnd = i
			break
		}
	}
	line := request[:lineEnd]

	firstSpace := -1
	for i, c := range line {
		if c == ' ' {
			firstSpace = i
			break
		}
	}
	if firstSpace < 0 {
		return false
	}
	rest := line[firstSpace+1:]
	secondSpace := len(rest)
	for i, c := range rest {
		if c == ' ' {
			secondSpace = i
			break
		}
	}
	target := rest[:secondSpace]
	if len(target) < len(prefix) {
		return false
	}
	return string(target[:len(prefix)]) == prefix
}
