package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownActions(t *testing.T) {
	cases := []struct {
		action string
		queue  string
	}{
		{"approve_membership", QueueApproval},
		{"verify_fund", QueueApproval},
		{"publish_news", QueuePublish},
		{"republish_profile", QueuePublish},
		{"send_newsletter", QueueEmail},
		{"send_digest", QueueEmail},
		{"embed_profile", QueueEmbedding},
		{"compute_embedding", QueueEmbedding},
		{"fire_webhook", QueueWebhook},
		{"webhook_retry", QueueWebhook},
	}
	for _, tc := range cases {
		queue, recognized := Classify(tc.action)
		assert.Equal(t, tc.queue, queue, "action %q", tc.action)
		assert.True(t, recognized, "action %q should be recognized", tc.action)
	}
}

func TestClassify_FallbackToNotification(t *testing.T) {
	queue, recognized := Classify("anything_else")
	assert.Equal(t, QueueNotification, queue)
	assert.False(t, recognized)
}

func TestClassify_FirstMatchWins(t *testing.T) {
	// "approve" outranks "publish" by rule order.
	queue, _ := Classify("approve_publish_request")
	assert.Equal(t, QueueApproval, queue)
}

func TestClassify_CaseAndWhitespaceInsensitive(t *testing.T) {
	queue, recognized := Classify("  Send_Newsletter  ")
	assert.Equal(t, QueueEmail, queue)
	assert.True(t, recognized)

	// "send" must be a prefix; a mid-string occurrence is not an email send.
	queue, recognized = Classify("resend_invite")
	assert.Equal(t, QueueNotification, queue)
	assert.False(t, recognized)
}
