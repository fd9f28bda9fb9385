// Package redisserver serves the memkv store over a subset of RESP2.
//
// Requests are inline lines or multi-bulk arrays of bulk strings. Each
// connection runs its own session loop; replies are written in request
// order and flushed once no pipelined request is buffered.
//
// Supported commands:
//   - GET, SET [EX seconds | PX milliseconds]
//   - TTL, EXPIRE
//   - EXISTS, DEL
//   - KEYS pattern
//
// Framing errors, validation errors and handler panics are answered with an
// error reply and leave the connection open. Transport errors end the
// session only.
package redisserver
