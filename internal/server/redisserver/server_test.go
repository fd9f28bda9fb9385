package redisserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/memkv/internal/storage/memory"
	"github.com/yndnr/memkv/internal/telemetry/metric"
)

type testServer struct {
	srv   *Server
	store *memory.Store
	addr  string
}

func startServer(t *testing.T, cfg *Config, opts ...Option) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Host = "127.0.0.1"
	cfg.Port = 0

	store := memory.New(memory.WithSweepInterval(10 * time.Millisecond))
	srv := New(cfg, store, opts...)
	require.NoError(t, srv.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &testServer{srv: srv, store: store, addr: srv.Addr().String()}
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func (ts *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", ts.addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(raw string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(raw))
	require.NoError(c.t, err)
}

// expect reads exactly len(want) bytes and compares them.
func (c *testClient) expect(want string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	got := make([]byte, len(want))
	_, err := io.ReadFull(c.r, got)
	require.NoError(c.t, err, "waiting for %q", want)
	assert.Equal(c.t, want, string(got))
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.r.ReadByte()
	assert.ErrorIs(c.t, err, io.EOF)
}

func multiBulk(args ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(a), a)
	}
	return b.String()
}

func TestServer_SetThenGet(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send(multiBulk("SET", "a", "1"))
	c.expect("$2\r\nOK\r\n")
	c.send(multiBulk("GET", "a"))
	c.expect("$1\r\n1\r\n")
}

func TestServer_UnknownInlineCommand(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send("PING\r\n")
	c.expect("-ERR unknown command 'PING'\r\n")

	c.send("SET k v\r\nGET k\r\n")
	c.expect("$2\r\nOK\r\n$1\r\nv\r\n")
}

func TestServer_MalformedArrayHeader(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send("*abc\r\n")
	c.expect("-ERR protocol error: invalid multibulk length\r\n")

	c.send(multiBulk("EXISTS", "a"))
	c.expect(":0\r\n")
}

func TestServer_OversizedArrayCount(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send("*1025\r\n")
	c.expect("-ERR protocol error: multibulk length 1025 exceeds limit 1024\r\n")
	assert.Equal(t, 0, ts.store.Size())

	c.send(multiBulk("SET", "a", "1"))
	c.expect("$2\r\nOK\r\n")
}

func TestServer_Pipeline(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send(multiBulk("SET", "a", "1") +
		multiBulk("SET", "b", "2", "EX", "100") +
		"\r\n" +
		multiBulk("EXISTS", "a", "b", "c") +
		"+OK\r\n" +
		multiBulk("TTL", "b") +
		multiBulk("KEYS", "*") +
		multiBulk("DEL", "a", "b"))

	c.expect("$2\r\nOK\r\n" +
		"$2\r\nOK\r\n" +
		":2\r\n" +
		"-ERR protocol error: unexpected reply type '+'\r\n" +
		":100\r\n" +
		"*2\r\n$1\r\na\r\n$1\r\nb\r\n" +
		":2\r\n")
}

func TestServer_CommandErrorsKeepConnection(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	c.send(multiBulk("GET"))
	c.expect("-ERR wrong number of arguments for 'get' command\r\n")
	c.send(multiBulk("SET", "k", "v", "EX", "soon"))
	c.expect("-ERR value is not an integer or out of range\r\n")
	c.send(multiBulk("SET", "k", "v", "KEEPTTL"))
	c.expect("-ERR syntax error\r\n")
	c.send(multiBulk("EXPIRE", "k", "10"))
	c.expect(":0\r\n")
}

func TestServer_HandlerFaultKeepsConnection(t *testing.T) {
	reg := NewRegistry()
	reg.Register(panicCommand{})
	reg.Register(echoCommand{})

	ts := startServer(t, nil, WithDispatcher(NewDispatcher(reg)))
	c := ts.dial(t)

	c.send(multiBulk("BOOM"))
	c.expect("-ERR kaboom\r\n")
	c.send(multiBulk("ECHO", "x", "y"))
	c.expect("*2\r\n$1\r\nx\r\n$1\r\ny\r\n")
}

func TestServer_ReplyBeforePartialRequest(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	// The reply to a complete command must not wait for the rest of the
	// request that follows it.
	c.send(multiBulk("SET", "a", "1") + "*2\r\n$3\r\nGET\r\n")
	c.expect("$2\r\nOK\r\n")
	c.send("$1\r\na\r\n")
	c.expect("$1\r\n1\r\n")

	c.send("SET b 2\r\nGET")
	c.expect("$2\r\nOK\r\n")
	c.send(" b\r\n")
	c.expect("$1\r\n2\r\n")
}

func TestServer_ReadTimeoutReply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	ts := startServer(t, cfg)
	c := ts.dial(t)

	c.expect("-ERR protocol error: read timeout\r\n")

	// Further timeouts may fire before the command arrives.
	c.send(multiBulk("SET", "a", "1"))
	for {
		require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		line, err := c.r.ReadString('\n')
		require.NoError(t, err)
		if line == "-ERR protocol error: read timeout\r\n" {
			continue
		}
		assert.Equal(t, "$2\r\n", line)
		break
	}
	c.expect("OK\r\n")
}

func TestServer_RateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	reg := metric.NewRegistry()
	ts := startServer(t, cfg, WithMetrics(reg))
	c := ts.dial(t)

	c.send(multiBulk("GET", "a") + multiBulk("GET", "a") + multiBulk("SET", "a", "1"))
	c.expect("$-1\r\n$-1\r\n-ERR rate limit exceeded\r\n")
	assert.Equal(t, 0, ts.store.Size())

	assert.Contains(t, scrapeMetrics(t, reg), "memkv_rate_limited_total 1")
}

func TestServer_ClientClose(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)

	// A partial frame followed by close ends only this session.
	c.send("*2\r\n$3\r\nSET\r\n")
	require.NoError(t, c.conn.Close())

	other := ts.dial(t)
	other.send(multiBulk("SET", "x", "1"))
	other.expect("$2\r\nOK\r\n")
}

func TestServer_ConcurrentClients(t *testing.T) {
	ts := startServer(t, nil)

	const clients = 20
	const perClient = 50

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", ts.addr, time.Second)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
			r := bufio.NewReader(conn)

			for j := 0; j < perClient; j++ {
				key := fmt.Sprintf("c%d:k%d", id, j)
				val := fmt.Sprintf("v%d", j)
				if _, err := conn.Write([]byte(multiBulk("SET", key, val) + multiBulk("GET", key))); err != nil {
					errs <- err
					return
				}
				want := "$2\r\nOK\r\n" + fmt.Sprintf("$%d\r\n%s\r\n", len(val), val)
				got := make([]byte, len(want))
				if _, err := io.ReadFull(r, got); err != nil {
					errs <- err
					return
				}
				if string(got) != want {
					errs <- fmt.Errorf("client %d: got %q, want %q", id, got, want)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, clients*perClient, ts.store.Size())
}

func TestServer_StartIsIdempotent(t *testing.T) {
	ts := startServer(t, nil)
	addr := ts.srv.Addr().String()

	require.NoError(t, ts.srv.Start(context.Background()))
	assert.Equal(t, addr, ts.srv.Addr().String())
	assert.True(t, ts.store.SweeperRunning())
}

func TestServer_AddrBeforeStart(t *testing.T) {
	srv := New(nil, memory.New())
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()))
}

func TestServer_StartBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	srv := New(&Config{Host: "127.0.0.1", Port: port}, memory.New())
	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func TestServer_Shutdown(t *testing.T) {
	ts := startServer(t, nil)
	idle := ts.dial(t)
	idle.send(multiBulk("SET", "a", "1"))
	idle.expect("$2\r\nOK\r\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))

	idle.expectClosed()
	assert.False(t, ts.store.SweeperRunning())

	_, err := net.DialTimeout("tcp", ts.addr, 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed")

	assert.ErrorIs(t, ts.srv.Start(context.Background()), ErrServerClosed)
	assert.NoError(t, ts.srv.Shutdown(ctx), "second Shutdown is a no-op")
}

// blockingCommand parks until release is closed.
type blockingCommand struct {
	entered chan struct{}
	release chan struct{}
}

func (c *blockingCommand) Name() string { return "SLOW" }

func (c *blockingCommand) Execute([]string) (any, error) {
	close(c.entered)
	<-c.release
	return "done", nil
}

func TestServer_ShutdownFinishesRunningCommand(t *testing.T) {
	cmd := &blockingCommand{entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry()
	reg.Register(cmd)

	ts := startServer(t, nil, WithDispatcher(NewDispatcher(reg)))
	c := ts.dial(t)
	c.send(multiBulk("SLOW"))
	<-cmd.entered

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- ts.srv.Shutdown(ctx)
	}()

	select {
	case err := <-shutdownErr:
		t.Fatalf("Shutdown returned %v while a command was running", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(cmd.release)
	c.expect("$4\r\ndone\r\n")
	c.expectClosed()
	require.NoError(t, <-shutdownErr)
}

func TestServer_ShutdownContextExpires(t *testing.T) {
	cmd := &blockingCommand{entered: make(chan struct{}), release: make(chan struct{})}
	reg := NewRegistry()
	reg.Register(cmd)

	ts := startServer(t, nil, WithDispatcher(NewDispatcher(reg)))
	c := ts.dial(t)
	c.send(multiBulk("SLOW"))
	<-cmd.entered
	defer close(cmd.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ts.srv.Shutdown(ctx), context.DeadlineExceeded)
}

func TestServer_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	ts := startServer(t, nil, WithMetrics(reg))
	c := ts.dial(t)

	c.send(multiBulk("SET", "a", "1"))
	c.expect("$2\r\nOK\r\n")
	c.send(multiBulk("GET"))
	c.expect("-ERR wrong number of arguments for 'get' command\r\n")
	c.send("HELLO\r\n")
	c.expect("-ERR unknown command 'HELLO'\r\n")
	c.send("*x\r\n")
	c.expect("-ERR protocol error: invalid multibulk length\r\n")

	body := scrapeMetrics(t, reg)
	assert.Contains(t, body, `memkv_commands_total{command="SET",result="ok"} 1`)
	assert.Contains(t, body, `memkv_commands_total{command="GET",result="error"} 1`)
	assert.Contains(t, body, `memkv_commands_total{command="unknown",result="error"} 1`)
	assert.Contains(t, body, `memkv_protocol_errors_total{kind="malformed"} 1`)
	assert.Contains(t, body, "memkv_connections_active 1")
	assert.Contains(t, body, "memkv_connections_total 1")
}

func scrapeMetrics(t *testing.T, reg *metric.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
