// Package lock implements a fast mutex for clients that share nothing but a
// plain key-value store. The store only has to support get, set and remove:
// mutual exclusion comes from a two flag protocol (a variant of Lamport's fast
// mutual exclusion algorithm) over the records X(key) and Y(key), contention
// is resolved with a fixed settle delay, and every record carries an expiry so
// locks left behind by crashed clients are reclaimed lazily on read.
//
// A FastMutex never blocks on the store beyond single calls. Retries wait on
// a timer and the whole acquisition is bounded by the configured timeout.
package lock
