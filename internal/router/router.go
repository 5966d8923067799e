// Package router classifies action strings into named queues.
package router

import "strings"

// Queue names. Every action lands on exactly one of these.
const (
	QueueApproval     = "approval"
	QueuePublish      = "publish"
	QueueEmail        = "email"
	QueueEmbedding    = "embedding"
	QueueWebhook      = "webhook"
	QueueNotification = "notification"
)

// AllQueues lists every queue in dispatch-priority order.
var AllQueues = []string{
	QueueApproval,
	QueuePublish,
	QueueEmail,
	QueueEmbedding,
	QueueWebhook,
	QueueNotification,
}

type rule struct {
	match func(string) bool
	queue string
}

// rules are evaluated in order; the first match wins. The final fallback is
// unconditional, so classification never fails; unrecognized actions
// degrade into the notification queue.
var rules = []rule{
	{func(a string) bool { return strings.Contains(a, "approve") || strings.Contains(a, "verify") }, QueueApproval},
	{func(a string) bool { return strings.Contains(a, "publish") }, QueuePublish},
	{func(a string) bool { return strings.HasPrefix(a, "send_") }, QueueEmail},
	{func(a string) bool { return strings.Contains(a, "embed") }, QueueEmbedding},
	{func(a string) bool { return strings.Contains(a, "webhook") }, QueueWebhook},
}

// Classify maps an action string to its queue. recognized is false when the
// unconditional fallback fired; callers record that in the audit entry's
// details so unrecognized actions can be triaged later.
func Classify(action string) (queueName string, recognized bool) {
	a := strings.ToLower(strings.TrimSpace(action))
	for _, r := range rules {
		if r.match(a) {
			return r.queue, true
		}
	}
	return QueueNotification, false
}
