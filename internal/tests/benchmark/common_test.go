package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/memkv/internal/server/redisserver"
	"github.com/yndnr/memkv/internal/storage/memory"
)

// KeyCounts defines the key space sizes for benchmarking.
var KeyCounts = []int{10000, 50000, 100000, 500000, 1000000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000, 100000}

// valueSize is the payload size written by benchmarks.
const valueSize = 256

// newKey generates a unique session-style key.
func newKey() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, _ := ulid.New(ulid.Timestamp(time.Now()), entropy)
	return "session:" + strings.ToLower(id.String())
}

// newValue returns a payload of valueSize bytes.
func newValue() string {
	return strings.Repeat("v", valueSize)
}

// prefillStore fills a store with count keys, every other one with a TTL.
func prefillStore(store *memory.Store, count int) []string {
	keys := make([]string, count)
	value := newValue()
	for i := 0; i < count; i++ {
		keys[i] = newKey()
		ttl := time.Duration(0)
		if i%2 == 0 {
			ttl = time.Hour
		}
		store.Set(keys[i], value, ttl)
	}
	return keys
}

// startServer runs a server on an ephemeral port for the benchmark.
func startServer(b *testing.B, store *memory.Store) string {
	b.Helper()

	srv := redisserver.New(&redisserver.Config{Host: "127.0.0.1"}, store)
	if err := srv.Start(context.Background()); err != nil {
		b.Fatalf("Start failed: %v", err)
	}
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	addr := srv.Addr().(*net.TCPAddr)
	return net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port))
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithKeyCounts runs a benchmark function with various key space sizes.
func runWithKeyCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("keys_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
