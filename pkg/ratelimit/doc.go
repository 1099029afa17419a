// Package ratelimit implements fixed-window request limits keyed by a
// recipient key and a delivery channel.
//
// Each (channel, key) pair owns one counter stored under
// "ratelimit:<channel>:<key>". The first request of a window creates the
// counter with a TTL equal to the window; when the TTL elapses the next
// request starts a fresh window. Allow checks and increments in one atomic
// store operation, so concurrent workers sharing a store never admit more
// than the limit within a window.
//
// MemoryStore serves a single process and tests. RedisStore shares windows
// across processes through a Lua script.
package ratelimit
