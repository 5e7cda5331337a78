package secureio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrips(t *testing.T) {
	identity, err := GenerateIdentity()
	require.NoError(t, err)

	plaintext := []byte(`{"version":"1.0"}`)

	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, plaintext, identity.Recipient()))

	decrypted, err := Decrypt(&buf, identity)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestParseRecipientAndIdentity_RoundTrip(t *testing.T) {
	identity, err := GenerateIdentity()
	require.NoError(t, err)

	parsedRecipient, err := ParseRecipient(identity.Recipient().String())
	require.NoError(t, err)

	parsedIdentity, err := ParseIdentity(identity.String())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encrypt(&buf, []byte("hello"), parsedRecipient))

	decrypted, err := Decrypt(&buf, parsedIdentity)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decrypted)
}
