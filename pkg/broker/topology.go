package broker

import "time"

// Exchange kinds.
const (
	KindTopic  = "topic"
	KindDirect = "direct"
)

// Names of the exchanges, queues and routing keys used by the platform.
const (
	MainExchange       = "slip-verification-exchange"
	DeadLetterExchange = "dead-letter-exchange"

	NotificationsQueue      = "notifications-queue"
	EmailNotificationsQueue = "email-notifications-queue"
	PushNotificationsQueue  = "push-notifications-queue"
	SlipProcessingQueue     = "slip-processing-queue"
	ReportsQueue            = "reports-queue"

	RoutingSlipProcessing   = "slip.processing"
	RoutingSlipVerified     = "slip.verified"
	RoutingSlipRejected     = "slip.rejected"
	RoutingReportGeneration = "report.generation"
	RoutingEmailSend        = "email.send"
	RoutingPushSend         = "push.send"

	// RoutingNotificationPrefix is followed by the channel name, e.g. "notification.sms".
	RoutingNotificationPrefix = "notification."

	dlqSuffix = ".dlq"
)

// Exchange declares an exchange.
type Exchange struct {
	Name string
	Kind string
}

// Queue declares a durable queue and its bindings.
type Queue struct {
	Name string
	// Bindings maps an exchange name to the binding keys on it.
	Bindings map[string][]string
	// DeadLetterExchange receives rejected and expired messages. The routing
	// key used is DeadLetterRoutingKey.
	DeadLetterExchange   string
	DeadLetterRoutingKey string
	MessageTTL           time.Duration
	MaxLength            int
}

// Topology is the full set of exchanges and queues declared at startup.
type Topology struct {
	Exchanges []Exchange
	Queues    []Queue
}

// DeadLetterQueueName returns the dead-letter queue paired with queue.
func DeadLetterQueueName(queue string) string {
	return queue + dlqSuffix
}

// WorkQueue builds a queue bound to MainExchange with its own dead-letter
// queue behind DeadLetterExchange.
func WorkQueue(name string, bindingKeys ...string) Queue {
	return Queue{
		Name:                 name,
		Bindings:             map[string][]string{MainExchange: bindingKeys},
		DeadLetterExchange:   DeadLetterExchange,
		DeadLetterRoutingKey: name,
		MessageTTL:           time.Hour,
		MaxLength:            10000,
	}
}

// DeadLetterQueue builds the dead-letter queue paired with a work queue.
func DeadLetterQueue(work string) Queue {
	return Queue{
		Name:     DeadLetterQueueName(work),
		Bindings: map[string][]string{DeadLetterExchange: {work}},
	}
}

// DefaultTopology returns the exchanges and queues of the notification pipeline.
func DefaultTopology() Topology {
	work := []Queue{
		WorkQueue(NotificationsQueue, "notification.*"),
		WorkQueue(EmailNotificationsQueue, RoutingEmailSend),
		WorkQueue(PushNotificationsQueue, RoutingPushSend),
		WorkQueue(SlipProcessingQueue, "slip.*"),
		WorkQueue(ReportsQueue, RoutingReportGeneration),
	}

	t := Topology{
		Exchanges: []Exchange{
			{Name: MainExchange, Kind: KindTopic},
			{Name: DeadLetterExchange, Kind: KindDirect},
		},
	}
	for _, q := range work {
		t.Queues = append(t.Queues, q, DeadLetterQueue(q.Name))
	}
	return t
}

// Queue returns the queue declaration with the given name.
func (t Topology) Queue(name string) (Queue, bool) {
	for _, q := range t.Queues {
		if q.Name == name {
			return q, true
		}
	}
	return Queue{}, false
}
