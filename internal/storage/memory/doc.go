// Package memory provides the in-memory storage engine for memkv.
//
// The Store owns the key space and its expiration bookkeeping and has no
// knowledge of the network.
//
// Expiration is hybrid:
//
//   - Lazy: every read path (Get, Exists, TTL, Keys, Size) deletes an entry
//     it observes as expired before answering.
//   - Active: a Sweeper periodically pops due pairs from a min-heap of
//     (instant, key) and deletes keys whose current instant still matches.
//
// The heap may hold stale pairs after a TTL is renewed or a key is
// overwritten or deleted. Such pairs are discarded when popped; the key map
// is always authoritative.
//
// Thread Safety:
//
// A single mutex guards the key map and the heap together. Every public
// operation holds it only for its own duration and never across I/O.
package memory
