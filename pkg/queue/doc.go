// Package queue carries typed envelopes over a broker.Broker and runs the
// per-queue consumer state machine.
//
// An Envelope holds the common header (message id, creation time, retry
// count, correlation id) and exactly one category payload. On the wire the
// header and payload fields share one flat JSON object.
//
// A Consumer decodes each delivery and calls its Handler:
//
//   - undecodable messages are rejected straight to the dead-letter queue;
//   - success acknowledges the message;
//   - an error wrapped with Permanent dead-letters the message at once;
//   - an error built with Defer republishes the message after a delay without
//     counting a failure;
//   - any other error increments the retry count and republishes after a
//     backoff, until the count reaches the retry ceiling and the message is
//     dead-lettered exactly once.
//
// Republishing goes through the default exchange straight back to the
// consumed queue. If a republish fails the delivery is requeued, so a message
// is never dropped.
package queue
