package logger

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// Attribute keys that carry cache payloads. Their content is replaced by
// its size so that stored values never reach the logs.
var payloadKeys = map[string]struct{}{
	"value":   {},
	"payload": {},
	"args":    {},
}

// redactPayload rewrites payload attributes, recursing into groups.
func redactPayload(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactPayload(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if !IsPayloadKey(a.Key) {
		return a
	}
	return slog.String(a.Key, PayloadSize(a.Value.Any()))
}

// IsPayloadKey reports whether attributes named key are redacted.
func IsPayloadKey(key string) bool {
	_, ok := payloadKeys[strings.ToLower(key)]
	return ok
}

// PayloadSize describes v by size only: "<n bytes>" for strings and byte
// slices, "<n items>" for other slices.
func PayloadSize(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return fmt.Sprintf("<%d bytes>", len(x))
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("<%d items>", rv.Len())
	default:
		return "<redacted>"
	}
}
