// Package callback posts delivery reports to caller supplied URLs.
//
// A Client marshals the payload to JSON and POSTs it with bounded retries.
// Network errors, 5xx, 408, 425 and 429 responses are retried with
// exponential backoff; other 4xx responses fail immediately. When a secret
// is configured every request carries an HMAC-SHA256 signature over
// "<unix timestamp>.<body>" in the X-Callback-Signature header, which
// receivers check with Verify.
//
// Each destination host has its own circuit breaker, so one unreachable
// receiver does not slow down callbacks to the others.
//
//	client := callback.NewClient(
//		callback.WithSecret(cfg.Secret),
//		callback.WithMaxRetries(3),
//	)
//	err := client.Send(ctx, "https://merchant.example.com/hooks/slip", report)
package callback
