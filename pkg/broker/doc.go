// Package broker is the durable publish/consume primitive under the
// notification pipeline.
//
// A Broker publishes messages to an exchange with a routing key and runs a
// bounded number of concurrent handlers per queue. Handlers settle every
// delivery with an Outcome: Ack removes it, Requeue redelivers it and Reject
// dead-letters it through the queue's dead-letter exchange.
//
// Two implementations share the same Topology:
//
//   - RabbitMQ keeps one process-wide AMQP connection with a background
//     reconnect loop. Publishers lease confirm-mode channels from a ChannelPool
//     so concurrent publishes never share a channel; each consumer owns its
//     channel. When the server is unreachable at startup the broker starts in
//     degraded mode: Publish returns ErrNotConnected and consumers wait until
//     the connection comes back.
//   - Memory routes messages in-process with the same exchange, binding and
//     dead-letter rules. It backs the tests and BROKER_DRIVER=memory.
package broker
