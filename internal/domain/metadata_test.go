package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata_EmailShape(t *testing.T) {
	raw := json.RawMessage(`{
		"audienceDefinition": {"segment": "investors", "size": 1200},
		"templateKey": "weekly-digest",
		"templateVersion": 3,
		"templateCategory": "marketing",
		"sendingDomain": "mail.example.com",
		"throttleMs": 100,
		"unsubscribeLink": true,
		"complianceFlags": ["first_send"]
	}`)

	m, err := DecodeMetadata("email", raw)
	require.NoError(t, err)
	em, ok := m.(EmailMetadata)
	require.True(t, ok)
	assert.Equal(t, "weekly-digest", em.TemplateKey)
	assert.Equal(t, 1200, em.Audience.Size)
	assert.Equal(t, []string{"first_send"}, em.ComplianceFlags)
	assert.Equal(t, "email", em.Kind())
}

func TestDecodeMetadata_EmailRequiresTemplateKey(t *testing.T) {
	_, err := DecodeMetadata("email", json.RawMessage(`{"audienceDefinition":{"size":10}}`))
	assert.Error(t, err)
}

func TestDecodeMetadata_PublishRequiresSources(t *testing.T) {
	_, err := DecodeMetadata("publish", json.RawMessage(`{"claims":["x"]}`))
	assert.Error(t, err)

	m, err := DecodeMetadata("publish", json.RawMessage(`{"sourceUrls":["https://example.com/a"]}`))
	require.NoError(t, err)
	pm, ok := m.(PublishMetadata)
	require.True(t, ok)
	assert.Len(t, pm.SourceURLs, 1)
}

func TestDecodeMetadata_ApprovalRiskLevel(t *testing.T) {
	_, err := DecodeMetadata("approval", json.RawMessage(`{"riskLevel":"extreme"}`))
	assert.Error(t, err)

	m, err := DecodeMetadata("approval", json.RawMessage(`{"riskLevel":"high","evidence":["doc:1"]}`))
	require.NoError(t, err)
	am, ok := m.(ApprovalMetadata)
	require.True(t, ok)
	assert.Equal(t, "high", am.RiskLevel)
}

func TestDecodeMetadata_GenericQueues(t *testing.T) {
	m, err := DecodeMetadata("notification", json.RawMessage(`{"anything":"goes"}`))
	require.NoError(t, err)
	gm, ok := m.(GenericMetadata)
	require.True(t, ok)
	assert.Equal(t, "goes", gm.Data["anything"])

	m, err = DecodeMetadata("webhook", nil)
	require.NoError(t, err)
	_, ok = m.(GenericMetadata)
	assert.True(t, ok)
}

func TestDecodeMetadata_MalformedJSON(t *testing.T) {
	_, err := DecodeMetadata("email", json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestJobValidate(t *testing.T) {
	good := Job{Action: "send_newsletter", EntityID: "c-1", Version: 1, SubmittedBy: "fred"}
	assert.NoError(t, good.Validate())

	cases := []Job{
		{EntityID: "c-1", Version: 1, SubmittedBy: "fred"},
		{Action: "a", Version: 1, SubmittedBy: "fred"},
		{Action: "a", EntityID: "c-1", Version: 0, SubmittedBy: "fred"},
		{Action: "a", EntityID: "c-1", Version: 1},
	}
	for i, j := range cases {
		assert.Error(t, j.Validate(), "case %d", i)
	}
}

func TestJobState_Terminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateReady.Terminal())
	assert.False(t, StateDelayed.Terminal())
	assert.False(t, StateActive.Terminal())
}
