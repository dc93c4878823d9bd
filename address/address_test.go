package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault713/grinbox/cryptoutil"
)

func testKey(t *testing.T) *cryptoutil.PublicKey {
	t.Helper()
	_, pub, err := cryptoutil.GenerateKeyPair()
	require.NoError(t, err)
	return pub
}

func TestFormatOmitsDefaultDomainAndPort(t *testing.T) {
	addr := New(testKey(t), "", 0, cryptoutil.MainnetVersion)
	s := addr.Format()
	assert.NotContains(t, s, "@")
}

func TestFormatOmitsOnlyPortWhenDefault(t *testing.T) {
	addr := New(testKey(t), "example.com", DefaultPort, cryptoutil.MainnetVersion)
	s := addr.Format()
	assert.Contains(t, s, "@example.com")
	assert.NotContains(t, s, ":443")
}

func TestFormatIncludesNonDefaultPort(t *testing.T) {
	addr := New(testKey(t), "example.com", 13420, cryptoutil.MainnetVersion)
	s := addr.Format()
	assert.Contains(t, s, "@example.com:13420")
}

func TestRoundTripCanonical(t *testing.T) {
	addr := New(testKey(t), "peer.example.com", 13420, cryptoutil.MainnetVersion)
	canonical := addr.Format()

	parsed, err := Parse(canonical, cryptoutil.MainnetVersion)
	require.NoError(t, err)

	assert.Equal(t, canonical, parsed.Format())
}

func TestParseAcceptsStrippedForm(t *testing.T) {
	addr := New(testKey(t), "peer.example.com", 13420, cryptoutil.MainnetVersion)
	stripped := addr.Stripped()

	parsed, err := Parse(stripped, cryptoutil.MainnetVersion)
	require.NoError(t, err)
	assert.Equal(t, addr.Format(), parsed.Format())
}

func TestStrippedIsFormatWithoutScheme(t *testing.T) {
	addr := New(testKey(t), "peer.example.com", 13420, cryptoutil.MainnetVersion)
	assert.Equal(t, addr.Format()[len("grinbox://"):], addr.Stripped())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-an-address", cryptoutil.MainnetVersion)
	assert.Error(t, err)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	addr := New(testKey(t), "", 0, cryptoutil.MainnetVersion)
	_, err := Parse(addr.Format(), cryptoutil.TestnetVersion)
	assert.Error(t, err)
}
