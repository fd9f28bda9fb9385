package redisserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	MaxBulkLen = 512 * 1024

	// MaxInlineLen limits the first line of a command (4KB).
	MaxInlineLen = 4 * 1024

	// maxHeaderLen bounds "*<n>" and "$<n>" header lines.
	maxHeaderLen = 64
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
	ErrReadTimeout   = errors.New("resp: read timeout")
)

// ProtocolError reports a malformed, oversized or timed out request.
// Kind is one of ErrProtocol, ErrLimitExceeded or ErrReadTimeout.
type ProtocolError struct {
	Kind error
	Msg  string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

func protocolErr(kind error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ReadCommand reads exactly one inline or multi-bulk command from r.
//
// A blank inline line or "*0" yields zero tokens. Framing problems are
// returned as *ProtocolError. A clean io.EOF before the first byte is
// returned unchanged; any other error is a transport fault.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		if isTimeout(err) {
			return nil, protocolErr(ErrReadTimeout, "read timeout")
		}
		return nil, err
	}

	switch b[0] {
	case '*':
		return readArrayCommand(r)
	case '+', ':', '-':
		// Replies are never valid requests; drop the line so the next
		// command starts cleanly.
		if _, err := readLine(r, MaxInlineLen); err != nil {
			var pe *ProtocolError
			if !errors.As(err, &pe) || !errors.Is(pe, ErrLimitExceeded) {
				return nil, err
			}
		}
		return nil, protocolErr(ErrProtocol, "unexpected reply type '%c'", b[0])
	default:
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		parts := strings.Fields(line)
		out := make([][]byte, 0, len(parts))
		for _, p := range parts {
			out = append(out, []byte(p))
		}
		return out, nil
	}
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, protocolErr(ErrProtocol, "invalid multibulk length")
	}
	if n < 0 {
		return nil, protocolErr(ErrProtocol, "invalid multibulk length %d", n)
	}
	if n > MaxArrayLen {
		return nil, protocolErr(ErrLimitExceeded, "multibulk length %d exceeds limit %d", n, MaxArrayLen)
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

func readBulkString(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r, maxHeaderLen)
	if err != nil {
		return nil, err
	}
	if line == "" || line[0] != '$' {
		return nil, protocolErr(ErrProtocol, "expected '$', got %q", truncate(line, 16))
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
	if err != nil {
		return nil, protocolErr(ErrProtocol, "invalid bulk length")
	}
	if n == -1 {
		return []byte{}, nil
	}
	if n < 0 {
		return nil, protocolErr(ErrProtocol, "invalid bulk length %d", n)
	}
	if n > MaxBulkLen {
		return nil, protocolErr(ErrLimitExceeded, "bulk length %d exceeds limit %d", n, MaxBulkLen)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, readErr(err)
	}

	c, err := r.ReadByte()
	if err != nil {
		return nil, readErr(err)
	}
	if c == '\r' {
		if c, err = r.ReadByte(); err != nil {
			return nil, readErr(err)
		}
	}
	if c != '\n' {
		return nil, protocolErr(ErrProtocol, "invalid bulk terminator")
	}
	return buf, nil
}

// readLine reads one LF-terminated line, stripping the terminator and an
// optional CR before it. A line longer than maxLen is consumed to its end
// and rejected.
func readLine(r *bufio.Reader, maxLen int) (string, error) {
	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen+2 {
				if err := discardLine(r); err != nil {
					return "", err
				}
				return "", protocolErr(ErrLimitExceeded, "line length exceeds limit %d", maxLen)
			}
			continue
		}
		return "", readErr(err)
	}

	buf = buf[:len(buf)-1]
	if n := len(buf); n > 0 && buf[n-1] == '\r' {
		buf = buf[:n-1]
	}
	if len(buf) > maxLen {
		return "", protocolErr(ErrLimitExceeded, "line length exceeds limit %d", maxLen)
	}
	return string(buf), nil
}

func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return readErr(err)
		}
	}
}

// readErr maps an error hit inside a command to its protocol class.
// Transport faults other than end of stream pass through.
func readErr(err error) error {
	switch {
	case isTimeout(err):
		return protocolErr(ErrReadTimeout, "read timeout")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return protocolErr(ErrProtocol, "unexpected end of stream")
	default:
		return err
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Encode writes v as a RESP reply.
//
// nil is the null bulk string, bool and integers are integer replies,
// strings and byte slices are bulk strings and slices are arrays encoded
// element by element. Anything else is written as the bulk string of its
// fmt.Sprint form.
func Encode(w *bufio.Writer, v any) error {
	switch x := v.(type) {
	case nil:
		return WriteNullBulk(w)
	case bool:
		if x {
			return WriteInteger(w, 1)
		}
		return WriteInteger(w, 0)
	case int:
		return WriteInteger(w, int64(x))
	case int8:
		return WriteInteger(w, int64(x))
	case int16:
		return WriteInteger(w, int64(x))
	case int32:
		return WriteInteger(w, int64(x))
	case int64:
		return WriteInteger(w, x)
	case uint:
		return writeUnsigned(w, uint64(x))
	case uint8:
		return writeUnsigned(w, uint64(x))
	case uint16:
		return writeUnsigned(w, uint64(x))
	case uint32:
		return writeUnsigned(w, uint64(x))
	case uint64:
		return writeUnsigned(w, x)
	case string:
		return WriteBulkString(w, x)
	case []byte:
		return WriteBulk(w, x)
	case []string:
		if err := WriteArrayHeader(w, len(x)); err != nil {
			return err
		}
		for _, s := range x {
			if err := WriteBulkString(w, s); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := WriteArrayHeader(w, len(x)); err != nil {
			return err
		}
		for _, elem := range x {
			if err := Encode(w, elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return WriteBulkString(w, fmt.Sprint(v))
	}
}

func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func writeUnsigned(w *bufio.Writer, n uint64) error {
	_, err := w.WriteString(":" + strconv.FormatUint(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		return WriteNullBulk(w)
	}
	if _, err := w.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	if _, err := w.WriteString("$" + strconv.Itoa(len(s)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.WriteString(s); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}
