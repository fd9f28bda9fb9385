package redisserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/memkv/internal/storage/memory"
	"github.com/yndnr/memkv/internal/telemetry/metric"
)

// ErrServerClosed is returned by Start after Shutdown.
var ErrServerClosed = errors.New("redisserver: server closed")

// Config holds the Redis server configuration.
type Config struct {
	// Host is the listen host (default: 127.0.0.1).
	Host string
	// Port is the listen port. 0 picks an ephemeral port.
	Port int
	// ReadTimeout bounds the wait for each command (default: 30s).
	// An expired read is answered with a protocol error and the
	// connection stays open.
	ReadTimeout time.Duration
	// WriteTimeout bounds each flush of buffered replies (default: 30s).
	WriteTimeout time.Duration
	// RateLimit is the maximum number of commands per second per client IP.
	// 0 disables rate limiting.
	RateLimit int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         6379,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server serves the command protocol over TCP.
type Server struct {
	cfg        *Config
	store      *memory.Store
	dispatcher *Dispatcher
	limiter    *rateLimiter
	metrics    *metric.Registry
	logger     *slog.Logger

	mu         sync.Mutex
	ln         net.Listener
	started    bool
	conns      map[*conn]struct{}
	acceptDone chan struct{}
	running    atomic.Bool
	sessions   sync.WaitGroup
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records command, connection and protocol metrics into reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}

// WithDispatcher replaces the default command set.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Server) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// New creates a server for store. Without WithDispatcher it serves the
// default command set.
func New(cfg *Config, store *memory.Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		conns:  make(map[*conn]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.dispatcher == nil {
		s.dispatcher = NewDispatcher(NewDefaultRegistry(store))
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit)
	}

	return s
}

// Start binds the listener, starts the store sweeper and begins accepting
// connections. Calling Start on a running server is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		if s.running.Load() {
			return nil
		}
		return ErrServerClosed
	}

	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}

	s.ln = ln
	s.started = true
	s.running.Store(true)
	s.acceptDone = make(chan struct{})

	s.store.StartSweeper(ctx)
	go s.acceptLoop(ln)

	s.logger.Info("redis server listening",
		"address", ln.Addr().String(),
		"commands", s.dispatcher.Commands(),
		"rate_limit", s.cfg.RateLimit,
	)
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, stops the sweeper and drains live sessions.
// A session finishes the command it is executing and ends on its next
// read. Shutdown returns ctx.Err() if sessions outlive ctx; they are then
// closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || !s.running.Load() {
		s.mu.Unlock()
		return nil
	}
	s.running.Store(false)
	ln := s.ln
	s.mu.Unlock()

	var firstErr error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = err
	}
	<-s.acceptDone

	s.store.StopSweeper()

	s.mu.Lock()
	for c := range s.conns {
		c.drain()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.mu.Lock()
		for c := range s.conns {
			_ = c.netConn.Close()
		}
		s.mu.Unlock()
		return ctx.Err()
	}

	s.logger.Info("redis server stopped")
	return firstErr
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer close(s.acceptDone)

	for {
		nc, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("accept timeout, retrying", "error", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			s.logger.Error("accept failed", "error", err)
			return
		}

		c := s.newConn(nc)

		s.mu.Lock()
		if !s.running.Load() {
			s.mu.Unlock()
			_ = nc.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.sessions.Add(1)
		s.mu.Unlock()

		go s.serveConn(c)
	}
}

// conn is one client session.
type conn struct {
	id      string
	ip      string
	netConn net.Conn
	br      *bufio.Reader
	bw      *bufio.Writer
	logger  *slog.Logger

	writeTimeout time.Duration

	mu       sync.Mutex
	draining bool
}

func (s *Server) newConn(nc net.Conn) *conn {
	id := ulid.Make().String()
	c := &conn{
		id:           id,
		ip:           clientIP(nc.RemoteAddr()),
		netConn:      nc,
		bw:           bufio.NewWriter(nc),
		logger:       s.logger.With("conn_id", id, "remote", nc.RemoteAddr().String()),
		writeTimeout: s.cfg.WriteTimeout,
	}
	c.br = bufio.NewReader(flushingReader{c})
	return c
}

// flushingReader writes out buffered replies before each read from the
// network. Pipelined requests already in the read buffer are answered in a
// single write; any reply is sent before the session waits for more input,
// even when only part of the next request has arrived.
type flushingReader struct {
	c *conn
}

func (r flushingReader) Read(p []byte) (int, error) {
	if err := r.c.flush(); err != nil {
		// Not wrapped: a write timeout must end the session, not read as an
		// idle read timeout.
		return 0, fmt.Errorf("write reply: %v", err)
	}
	return r.c.netConn.Read(p)
}

// flush writes buffered replies under the write deadline.
func (c *conn) flush() error {
	if c.bw.Buffered() == 0 {
		return nil
	}
	if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.bw.Flush()
}

// armRead sets the deadline for the next read. It reports false once the
// session is draining.
func (c *conn) armRead(timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draining {
		return false
	}
	return c.netConn.SetReadDeadline(time.Now().Add(timeout)) == nil
}

// drain makes the pending or next read fail immediately.
func (c *conn) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = true
	_ = c.netConn.SetReadDeadline(time.Now())
}

func (c *conn) isDraining() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draining
}

func (s *Server) serveConn(c *conn) {
	s.metrics.ConnOpened()
	c.logger.Debug("connection opened")

	defer func() {
		_ = c.flush()
		_ = c.netConn.Close()
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.metrics.ConnClosed()
		c.logger.Debug("connection closed")
		s.sessions.Done()
	}()

	for {
		if !c.armRead(s.cfg.ReadTimeout) {
			return
		}

		args, err := ReadCommand(c.br)
		if err != nil {
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				if !errors.Is(err, io.EOF) && !c.isDraining() {
					c.logger.Debug("connection read error", "error", err)
				}
				return
			}
			if c.isDraining() {
				return
			}
			s.metrics.RecordProtocolError(protocolKind(pe))
			c.logger.Debug("protocol error", "error", pe.Msg)
			_ = WriteError(c.bw, "ERR "+pe.Error())
		} else if len(args) > 0 {
			s.execute(c, args)
		}
	}
}

// execute runs one command and buffers its reply.
func (s *Server) execute(c *conn, args [][]byte) {
	name := string(args[0])
	params := make([]string, len(args)-1)
	for i, a := range args[1:] {
		params[i] = string(a)
	}

	if s.limiter != nil && !s.limiter.allow(c.ip) {
		s.metrics.IncRateLimited()
		c.logger.Warn("rate limit exceeded", "command", name)
		_ = WriteError(c.bw, errRateLimited.Msg)
		return
	}

	start := time.Now()
	result, err := s.dispatcher.Dispatch(name, params)
	elapsed := time.Since(start).Seconds()

	label := "unknown"
	if s.dispatcher.Known(name) {
		label = strings.ToUpper(name)
	}

	if err != nil {
		var fault *HandlerFault
		if errors.As(err, &fault) {
			c.logger.Error("command handler panicked",
				"command", fault.Command,
				"panic", fmt.Sprint(fault.Value),
				"args", params,
			)
		}
		s.metrics.RecordCommand(label, "error", elapsed)
		_ = WriteError(c.bw, errorReply(err))
		return
	}

	s.metrics.RecordCommand(label, "ok", elapsed)
	_ = Encode(c.bw, result)
}

// errorReply renders err as a single-line error reply.
func errorReply(err error) string {
	var msg string
	var ce *CommandError
	var fault *HandlerFault
	switch {
	case errors.As(err, &ce):
		msg = ce.Msg
	case errors.As(err, &fault):
		msg = fault.Error()
	default:
		msg = "ERR " + err.Error()
	}
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(msg)
}

func protocolKind(pe *ProtocolError) string {
	switch {
	case errors.Is(pe, ErrReadTimeout):
		return "timeout"
	case errors.Is(pe, ErrLimitExceeded):
		return "limit"
	default:
		return "malformed"
	}
}
