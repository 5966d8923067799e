package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Check(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Check("fred", CapExec))
	assert.True(t, r.Check("daphne", CapMessage))
	assert.True(t, r.Check("shaggy", CapCron))

	assert.False(t, r.Check("daphne", CapExec))
	assert.False(t, r.Check("scooby", CapWrite))
	assert.False(t, r.Check("shaggy", CapMessage))
}

func TestRegistry_UnknownAgentFailsClosed(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Known("mystery"))
	assert.False(t, r.Check("mystery", CapRead))
	assert.Nil(t, r.Capabilities("mystery"))
}

func TestRegistry_CapabilitiesSorted(t *testing.T) {
	r := NewRegistry()
	caps := r.Capabilities("fred")
	assert.Equal(t, []Capability{CapExec, CapMessage, CapRead, CapWrite}, caps)
}

func TestCapabilityForQueue(t *testing.T) {
	assert.Equal(t, CapExec, CapabilityForQueue("approval"))
	assert.Equal(t, CapWrite, CapabilityForQueue("publish"))
	assert.Equal(t, CapMessage, CapabilityForQueue("email"))
	assert.Equal(t, CapMessage, CapabilityForQueue("notification"))
	assert.Equal(t, CapExec, CapabilityForQueue("webhook"))
	assert.Equal(t, CapWrite, CapabilityForQueue("embedding"))
	assert.Equal(t, CapExec, CapabilityForQueue("something-new"))
}
