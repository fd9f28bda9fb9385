package redisserver

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/memkv/internal/storage/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clock.Now))
	return NewDispatcher(NewDefaultRegistry(store)), store, clock
}

func dispatch(t *testing.T, d *Dispatcher, args ...string) any {
	t.Helper()
	res, err := d.Dispatch(args[0], args[1:])
	require.NoError(t, err, "%v", args)
	return res
}

func dispatchErr(t *testing.T, d *Dispatcher, args ...string) string {
	t.Helper()
	_, err := d.Dispatch(args[0], args[1:])
	require.Error(t, err, "%v", args)
	return err.Error()
}

func TestDispatcher_SetGet(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	assert.Equal(t, "OK", dispatch(t, d, "SET", "a", "1"))
	assert.Equal(t, "1", dispatch(t, d, "GET", "a"))
	assert.Equal(t, int64(memory.TTLPersisted), dispatch(t, d, "TTL", "a"))

	assert.Nil(t, dispatch(t, d, "GET", "missing"))
	assert.Equal(t, int64(memory.TTLMissing), dispatch(t, d, "TTL", "missing"))
}

func TestDispatcher_CaseInsensitiveNames(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	assert.Equal(t, "OK", dispatch(t, d, "set", "k", "v", "ex", "10"))
	assert.Equal(t, "v", dispatch(t, d, "Get", "k"))
	assert.True(t, d.Known("gEt"))
	assert.False(t, d.Known("PING"))
}

func TestDispatcher_SetWithTTL(t *testing.T) {
	d, _, clock := newTestDispatcher(t)

	dispatch(t, d, "SET", "ex", "v", "EX", "10")
	dispatch(t, d, "SET", "px", "v", "PX", "1500")
	dispatch(t, d, "SET", "frac", "v", "EX", "0.5")

	assert.Equal(t, int64(10), dispatch(t, d, "TTL", "ex"))
	assert.Equal(t, int64(1), dispatch(t, d, "TTL", "px"))
	assert.Equal(t, int64(0), dispatch(t, d, "TTL", "frac"))

	clock.Advance(600 * time.Millisecond)
	assert.Nil(t, dispatch(t, d, "GET", "frac"))
	assert.Equal(t, "v", dispatch(t, d, "GET", "px"))

	clock.Advance(time.Second)
	assert.Nil(t, dispatch(t, d, "GET", "px"))
	assert.Equal(t, int64(memory.TTLMissing), dispatch(t, d, "TTL", "px"))
}

func TestDispatcher_SetLastExpiryOptionWins(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	dispatch(t, d, "SET", "a", "v", "EX", "100", "PX", "5000")
	assert.Equal(t, int64(5), dispatch(t, d, "TTL", "a"))

	dispatch(t, d, "SET", "b", "v", "PX", "5000", "EX", "100")
	assert.Equal(t, int64(100), dispatch(t, d, "TTL", "b"))

	dispatch(t, d, "SET", "c", "v", "EX", "1", "EX", "30")
	assert.Equal(t, int64(30), dispatch(t, d, "TTL", "c"))
}

func TestDispatcher_SetWithoutTTLClearsExpiry(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	dispatch(t, d, "SET", "k", "v1", "EX", "10")
	dispatch(t, d, "SET", "k", "v2")
	assert.Equal(t, int64(memory.TTLPersisted), dispatch(t, d, "TTL", "k"))
	assert.Equal(t, "v2", dispatch(t, d, "GET", "k"))
}

func TestDispatcher_Errors(t *testing.T) {
	d, _, _ := newTestDispatcher(t)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"GET"}, "ERR wrong number of arguments for 'get' command"},
		{[]string{"GET", "a", "b"}, "ERR wrong number of arguments for 'get' command"},
		{[]string{"SET", "a"}, "ERR wrong number of arguments for 'set' command"},
		{[]string{"TTL"}, "ERR wrong number of arguments for 'ttl' command"},
		{[]string{"EXPIRE", "a"}, "ERR wrong number of arguments for 'expire' command"},
		{[]string{"EXISTS"}, "ERR wrong number of arguments for 'exists' command"},
		{[]string{"DEL"}, "ERR wrong number of arguments for 'del' command"},
		{[]string{"KEYS"}, "ERR wrong number of arguments for 'keys' command"},
		{[]string{"set", "a"}, "ERR wrong number of arguments for 'set' command"},
		{[]string{"SET", "a", "v", "NX"}, "ERR syntax error"},
		{[]string{"SET", "a", "v", "EX"}, "ERR syntax error"},
		{[]string{"SET", "a", "v", "EX", "10", "PX"}, "ERR syntax error"},
		{[]string{"SET", "a", "v", "EX", "ten"}, "ERR value is not an integer or out of range"},
		{[]string{"SET", "a", "v", "EX", "NaN"}, "ERR value is not an integer or out of range"},
		{[]string{"SET", "a", "v", "PX", "inf"}, "ERR value is not an integer or out of range"},
		{[]string{"SET", "a", "v", "EX", "0"}, "ERR invalid expire time in 'set' command"},
		{[]string{"SET", "a", "v", "EX", "-5"}, "ERR invalid expire time in 'set' command"},
		{[]string{"SET", "a", "v", "EX", "1e300"}, "ERR invalid expire time in 'set' command"},
		{[]string{"EXPIRE", "a", "x"}, "ERR value is not an integer or out of range"},
		{[]string{"EXPIRE", "a", "0"}, "ERR invalid expire time in 'expire' command"},
		{[]string{"PING"}, "ERR unknown command 'PING'"},
		{[]string{"flushall"}, "ERR unknown command 'FLUSHALL'"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := d.Dispatch(tt.args[0], tt.args[1:])
			require.Error(t, err)

			var ce *CommandError
			require.True(t, errors.As(err, &ce), "want *CommandError, got %T", err)
			assert.Equal(t, tt.want, ce.Msg)
		})
	}
}

func TestDispatcher_FailedSetLeavesStoreUntouched(t *testing.T) {
	d, store, _ := newTestDispatcher(t)

	dispatch(t, d, "SET", "k", "old")
	dispatchErr(t, d, "SET", "k", "new", "EX", "bogus")

	assert.Equal(t, "old", dispatch(t, d, "GET", "k"))
	assert.Equal(t, 1, store.Size())
}

func TestDispatcher_Expire(t *testing.T) {
	d, _, clock := newTestDispatcher(t)

	assert.Equal(t, false, dispatch(t, d, "EXPIRE", "missing", "10"))

	dispatch(t, d, "SET", "k", "v", "EX", "5")
	clock.Advance(4 * time.Second)
	assert.Equal(t, true, dispatch(t, d, "EXPIRE", "k", "10"))

	clock.Advance(2 * time.Second)
	assert.Equal(t, "v", dispatch(t, d, "GET", "k"))
	assert.Equal(t, int64(8), dispatch(t, d, "TTL", "k"))
}

func TestDispatcher_ExistsDel(t *testing.T) {
	d, _, clock := newTestDispatcher(t)

	dispatch(t, d, "SET", "a", "1")
	dispatch(t, d, "SET", "b", "2")
	dispatch(t, d, "SET", "c", "3", "PX", "100")

	assert.Equal(t, 3, dispatch(t, d, "EXISTS", "a", "b", "c", "d"))
	assert.Equal(t, 2, dispatch(t, d, "EXISTS", "a", "a"))

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, 2, dispatch(t, d, "EXISTS", "a", "b", "c"))

	assert.Equal(t, 1, dispatch(t, d, "DEL", "a", "c", "missing"))
	assert.Equal(t, 0, dispatch(t, d, "DEL", "a"))
	assert.Equal(t, 1, dispatch(t, d, "DEL", "b", "b"))
}

func TestDispatcher_Keys(t *testing.T) {
	d, _, clock := newTestDispatcher(t)

	dispatch(t, d, "SET", "user:1", "a")
	dispatch(t, d, "SET", "user:2", "b")
	dispatch(t, d, "SET", "user:10", "c", "EX", "1")
	dispatch(t, d, "SET", "session:1", "d")

	assert.Equal(t, []string{"session:1", "user:1", "user:10", "user:2"}, dispatch(t, d, "KEYS", "*"))
	assert.Equal(t, []string{"user:1", "user:2"}, dispatch(t, d, "KEYS", "user:?"))
	assert.Equal(t, []string{"session:1", "user:1"}, dispatch(t, d, "KEYS", "*[s:]1"))

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"user:1", "user:2"}, dispatch(t, d, "KEYS", "user:*"))
	assert.Equal(t, []string{}, dispatch(t, d, "KEYS", "nothing*"))
}

type panicCommand struct{}

func (panicCommand) Name() string { return "BOOM" }

func (panicCommand) Execute([]string) (any, error) {
	panic("kaboom")
}

type echoCommand struct{}

func (echoCommand) Name() string { return "echo" }

func (echoCommand) Execute(args []string) (any, error) {
	return args, nil
}

func TestDispatcher_HandlerFault(t *testing.T) {
	reg := NewRegistry()
	reg.Register(panicCommand{})
	reg.Register(echoCommand{})
	d := NewDispatcher(reg)

	_, err := d.Dispatch("boom", nil)
	var fault *HandlerFault
	require.True(t, errors.As(err, &fault), "want *HandlerFault, got %T", err)
	assert.Equal(t, "BOOM", fault.Command)
	assert.Equal(t, "ERR kaboom", fault.Error())

	// The dispatcher keeps serving after a fault.
	assert.Equal(t, []string{"x"}, dispatch(t, d, "ECHO", "x"))
}

func TestDispatcher_SnapshotsRegistry(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg)
	reg.Register(echoCommand{})

	assert.False(t, d.Known("ECHO"))
	assert.Empty(t, d.Commands())
}

func TestDispatcher_Commands(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	assert.Equal(t, []string{"DEL", "EXISTS", "EXPIRE", "GET", "KEYS", "SET", "TTL"}, d.Commands())
}

func TestErrorReply(t *testing.T) {
	assert.Equal(t, "ERR syntax error", errorReply(errSyntax))
	assert.Equal(t, "ERR line one line two", errorReply(&HandlerFault{Command: "X", Value: "line one\nline two"}))
	assert.Equal(t, "ERR disk on fire", errorReply(errors.New("disk on fire")))
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		unit time.Duration
		want time.Duration
	}{
		{"10", time.Second, 10 * time.Second},
		{"1.5", time.Second, 1500 * time.Millisecond},
		{"250", time.Millisecond, 250 * time.Millisecond},
		{"0.0001", time.Millisecond, 100 * time.Nanosecond},
		{"+3", time.Second, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTTL(tt.in, tt.unit, "set")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
