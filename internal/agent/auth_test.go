package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate_ValidToken(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())
	token, err := a.MintToken("fred", time.Minute)
	require.NoError(t, err)

	assert.NoError(t, a.Authenticate(token, "fred"))
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())

	err := a.Authenticate("", "fred")
	assert.ErrorIs(t, err, ErrMissingCredential)

	token, _ := a.MintToken("fred", time.Minute)
	err = a.Authenticate(token, "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestAuthenticate_SubjectMismatch(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())
	token, err := a.MintToken("fred", time.Minute)
	require.NoError(t, err)

	// Valid signature, wrong declared agent. Header spoofing must fail even
	// with a genuine credential.
	err = a.Authenticate(token, "velma")
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestAuthenticate_UnknownAgentRejected(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())
	token, err := a.MintToken("mystery", time.Minute)
	require.NoError(t, err)

	// A correctly signed token for an agent not on the roster still fails.
	err = a.Authenticate(token, "mystery")
	assert.ErrorIs(t, err, ErrIdentityMismatch)
}

func TestAuthenticate_WrongKey(t *testing.T) {
	minter := NewAuthenticator("other-key", NewRegistry())
	token, err := minter.MintToken("fred", time.Minute)
	require.NoError(t, err)

	a := NewAuthenticator("test-key", NewRegistry())
	err = a.Authenticate(token, "fred")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())
	token, err := a.MintToken("fred", -time.Minute)
	require.NoError(t, err)

	err = a.Authenticate(token, "fred")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAuthenticate_MalformedToken(t *testing.T) {
	a := NewAuthenticator("test-key", NewRegistry())
	err := a.Authenticate("not-a-jwt", "fred")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
