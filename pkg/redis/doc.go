// Package redis opens go-redis clients with startup retries and exposes a
// readiness probe. The notifier keeps its shared rate-limit windows here.
package redis
