// Package channel implements notification.Channel for the supported
// providers: LINE Notify chat push, Postmark email, Firebase Cloud Messaging
// push and Twilio SMS.
//
// Every channel classifies provider failures. Network errors, timeouts,
// HTTP 5xx and 408 are transient; HTTP 429 is rate limited; a missing
// address and other 4xx responses are permanent. Channels never return
// errors or panic; failures are reported in the notification.Result.
//
// FromConfig builds the channels whose credentials are configured:
//
//	cfg := config.MustLoad[channel.Config]()
//	channels, err := channel.FromConfig(ctx, cfg, log)
//	registry := notification.NewRegistry(channels...)
package channel
