// Package connection provides connection management for memkv-cli.
package connection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds dialing and each request round trip.
const DefaultTimeout = 5 * time.Second

// maxReplyLen caps bulk string lengths and array counts accepted from a server.
const maxReplyLen = 512 * 1024 * 1024

// ErrNotConnected is returned by Do on a closed client.
var ErrNotConnected = errors.New("connection: not connected")

// Kind identifies the type of a reply.
type Kind int

const (
	KindStatus Kind = iota
	KindError
	KindInteger
	KindBulk
	KindNil
	KindArray
)

// String returns the reply type name.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindInteger:
		return "integer"
	case KindBulk:
		return "bulk"
	case KindNil:
		return "nil"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Reply is one decoded server reply.
type Reply struct {
	Kind  Kind
	Str   string
	Int   int64
	Elems []*Reply
}

// Value converts the reply to plain Go values: string, int64, nil or []any.
// Error replies become their message.
func (r *Reply) Value() any {
	switch r.Kind {
	case KindInteger:
		return r.Int
	case KindNil:
		return nil
	case KindArray:
		out := make([]any, len(r.Elems))
		for i, e := range r.Elems {
			out[i] = e.Value()
		}
		return out
	default:
		return r.Str
	}
}

// ServerError is an error reply returned by the server.
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string {
	return e.Msg
}

// Client is a single connection to a memkv server. It is safe for
// concurrent use; requests are serialized.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// NewClient creates a client for addr. It does not dial.
func NewClient(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// Dial creates a client and connects it.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	c := NewClient(addr, timeout)
	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Connect dials the server, replacing any existing connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.addr, err)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	c.bw = bufio.NewWriter(conn)
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Do sends one command as a multi-bulk array and reads its reply. A top
// level error reply is returned as *ServerError. Transport failures close
// the connection.
func (c *Client) Do(args ...string) (*Reply, error) {
	if len(args) == 0 {
		return nil, errors.New("connection: empty command")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, c.fail(err)
	}
	if err := writeCommand(c.bw, args); err != nil {
		return nil, c.fail(err)
	}
	if err := c.bw.Flush(); err != nil {
		return nil, c.fail(err)
	}

	reply, err := ReadReply(c.br)
	if err != nil {
		return nil, c.fail(err)
	}
	if reply.Kind == KindError {
		return reply, &ServerError{Msg: reply.Str}
	}
	return reply, nil
}

func (c *Client) fail(err error) error {
	_ = c.conn.Close()
	c.conn = nil
	return err
}

func writeCommand(w *bufio.Writer, args []string) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n", len(args)); err != nil {
		return err
	}
	for _, a := range args {
		if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(a), a); err != nil {
			return err
		}
	}
	return nil
}

// ReadReply decodes one reply from r.
func ReadReply(r *bufio.Reader) (*Reply, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if line == "" {
		return nil, errors.New("connection: empty reply line")
	}

	body := line[1:]
	switch line[0] {
	case '+':
		return &Reply{Kind: KindStatus, Str: body}, nil
	case '-':
		return &Reply{Kind: KindError, Str: body}, nil
	case ':':
		n, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("connection: bad integer reply %q", body)
		}
		return &Reply{Kind: KindInteger, Int: n}, nil
	case '$':
		n, err := parseLen(body)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return &Reply{Kind: KindNil}, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return nil, errors.New("connection: bulk reply missing terminator")
		}
		return &Reply{Kind: KindBulk, Str: string(buf[:n])}, nil
	case '*':
		n, err := parseLen(body)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return &Reply{Kind: KindNil}, nil
		}
		elems := make([]*Reply, 0, n)
		for i := 0; i < n; i++ {
			e, err := ReadReply(r)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return &Reply{Kind: KindArray, Elems: elems}, nil
	default:
		return nil, fmt.Errorf("connection: unknown reply type %q", line[0])
	}
}

func parseLen(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < -1 || n > maxReplyLen {
		return 0, fmt.Errorf("connection: bad length %q", s)
	}
	return n, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}
