package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeco/agentkernel/internal/domain"
)

func newsletterMeta() domain.EmailMetadata {
	return domain.EmailMetadata{
		Audience:         domain.Audience{Segment: "investors", Size: 1200},
		TemplateKey:      "weekly-digest",
		TemplateVersion:  3,
		TemplateCategory: "marketing",
		SendingDomain:    "mail.example.com",
		UnsubscribeLink:  true,
	}
}

func TestEvaluate_CleanSendPasses(t *testing.T) {
	g := NewGate(5000)
	d := g.Evaluate(newsletterMeta())

	assert.Equal(t, Send, d.Outcome)
	assert.False(t, d.ApprovalRequired)
	assert.Empty(t, d.Reasons)
	require.NotNil(t, d.EstimatedSendTime)
}

func TestEvaluate_MarketingWithoutUnsubscribeBlocks(t *testing.T) {
	g := NewGate(5000)
	m := newsletterMeta()
	m.UnsubscribeLink = false

	d := g.Evaluate(m)
	assert.Equal(t, Block, d.Outcome)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "unsubscribe")
}

func TestEvaluate_TransactionalWithoutUnsubscribeAllowed(t *testing.T) {
	g := NewGate(5000)
	m := newsletterMeta()
	m.TemplateCategory = "transactional"
	m.UnsubscribeLink = false

	d := g.Evaluate(m)
	assert.Equal(t, Send, d.Outcome)
}

func TestEvaluate_ComplianceFlagSeverity(t *testing.T) {
	g := NewGate(5000)

	cases := []struct {
		flags []string
		level ApprovalLevel
	}{
		{[]string{"first_send"}, LevelLow},
		{[]string{"new_sending_domain"}, LevelMedium},
		{[]string{"content_flagged"}, LevelMedium},
		{[]string{"regulatory_hold"}, LevelHigh},
		{[]string{"finra_communication"}, LevelHigh},
		// Severest flag wins.
		{[]string{"first_send", "legal_review", "content_flagged"}, LevelHigh},
		// Unknown flags still escalate, at the low default.
		{[]string{"brand_new_flag"}, LevelLow},
	}
	for _, tc := range cases {
		m := newsletterMeta()
		m.ComplianceFlags = tc.flags

		d := g.Evaluate(m)
		assert.Equal(t, QueueForApproval, d.Outcome, "flags %v", tc.flags)
		assert.True(t, d.ApprovalRequired)
		assert.Equal(t, tc.level, d.ApprovalLevel, "flags %v", tc.flags)
	}
}

func TestEvaluate_AudienceThreshold(t *testing.T) {
	g := NewGate(5000)

	m := newsletterMeta()
	m.Audience.Size = 5000
	assert.Equal(t, Send, g.Evaluate(m).Outcome, "at the threshold is still a send")

	m.Audience.Size = 5001
	d := g.Evaluate(m)
	assert.Equal(t, QueueForApproval, d.Outcome)
	assert.Equal(t, LevelMedium, d.ApprovalLevel)
}

func TestEvaluate_FlagsAndVolumeAccumulate(t *testing.T) {
	g := NewGate(5000)
	m := newsletterMeta()
	m.ComplianceFlags = []string{"regulatory_hold"}
	m.Audience.Size = 10000

	d := g.Evaluate(m)
	assert.Equal(t, QueueForApproval, d.Outcome)
	assert.Equal(t, LevelHigh, d.ApprovalLevel, "volume must not downgrade a high flag")
	assert.Len(t, d.Reasons, 2)
	assert.Nil(t, d.EstimatedSendTime)
}

func TestEvaluate_BlockShortCircuits(t *testing.T) {
	g := NewGate(5000)
	m := newsletterMeta()
	m.UnsubscribeLink = false
	m.ComplianceFlags = []string{"regulatory_hold"}
	m.Audience.Size = 10000

	d := g.Evaluate(m)
	assert.Equal(t, Block, d.Outcome)
	assert.Len(t, d.Reasons, 1, "a block does not collect further reasons")
}

func TestNewGate_DefaultThreshold(t *testing.T) {
	assert.Equal(t, 5000, NewGate(0).AudienceThreshold)
	assert.Equal(t, 100, NewGate(100).AudienceThreshold)
}
