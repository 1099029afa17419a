// Package notification delivers user notifications through pluggable
// provider channels.
//
// Service is the entry point. SendNotification attempts delivery
// immediately and returns a definitive Result. QueueNotification persists a
// pending record, publishes it to the broker and returns the record id; the
// queue consumer later hands the envelope to HandleEnvelope, which applies
// the rate limit, renders the template, sends and records the outcome.
//
// Records move through the states
//
//	pending → processing → sent
//	                     ↘ retrying → processing ...
//	                     ↘ failed   → processing (manual retry)
//	pending | retrying | failed → cancelled
//
// Sent and cancelled are terminal. Storage enforces the transitions, so two
// workers racing on the same record cannot both send it.
//
// Basic usage:
//
//	registry := notification.NewRegistry(emailChannel, smsChannel)
//	svc, err := notification.NewService(store, registry,
//		notification.WithRateLimiter(limiter),
//		notification.WithTemplates(engine),
//		notification.WithPublisher(publisher),
//	)
//	id, err := svc.QueueNotification(ctx, notification.Message{
//		UserID:  userID,
//		Channel: notification.ChannelEmail,
//		Title:   "Slip verified",
//		Body:    "Your payment slip has been verified.",
//	})
package notification
