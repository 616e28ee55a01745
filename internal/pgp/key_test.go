package pgp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/pgp/pgptest"
)

func TestParsePublicKey(t *testing.T) {
	id := pgptest.NewIdentity(t, "Alice Liddell", "alice@example.org")

	k, err := ParsePublicKey(id.PublicKey)
	require.NoError(t, err)

	assert.Equal(t, "Alice Liddell", k.Profile.Name)
	assert.Equal(t, "alice@example.org", k.Profile.Email)
	assert.Len(t, string(k.Fingerprint()), 40)
	assert.Equal(t, strings.ToUpper(string(k.Fingerprint())), string(k.Fingerprint()))
	assert.Equal(t, k.Profile.ID, k.Fingerprint())

	again, err := ParsePublicKey(id.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, k.Fingerprint(), again.Fingerprint(), "fingerprint must be deterministic")
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	_, err := ParsePublicKey("hello")
	assert.True(t, errors.Is(err, domain.ErrInvalidPublicKey))

	fake := "-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nnotbase64!!\n-----END PGP PUBLIC KEY BLOCK-----"
	_, err = ParsePublicKey(fake)
	assert.True(t, errors.Is(err, domain.ErrInvalidPublicKey))
}

func TestEncryptRoundTrip(t *testing.T) {
	id := pgptest.NewIdentity(t, "Bob", "bob@example.org")
	k, err := ParsePublicKey(id.PublicKey)
	require.NoError(t, err)

	ct, err := k.Encrypt("s3cret challenge", time.Now())
	require.NoError(t, err)
	assert.True(t, IsArmoredMessage(ct))
	assert.NotContains(t, ct, "s3cret")
	assert.Equal(t, "s3cret challenge", id.Decrypt(t, ct))
}

func TestEncryptJudgesValidityAtGivenTime(t *testing.T) {
	id := pgptest.NewExpiringIdentity(t, "Erin", "erin@example.org", 24*time.Hour)
	k, err := ParsePublicKey(id.PublicKey)
	require.NoError(t, err)

	ct, err := k.Encrypt("hello", pgptest.Created.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "hello", id.Decrypt(t, ct))

	_, err = k.Encrypt("hello", pgptest.Created.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrNoEncryptionKey)

	_, err = k.Encrypt("hello", pgptest.Created.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrNoEncryptionKey, "not yet valid")
}

func TestProfileFallbacks(t *testing.T) {
	id := pgptest.NewIdentity(t, "", "carol@example.org")
	k, err := ParsePublicKey(id.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "carol", k.Profile.Name)

	id = pgptest.NewIdentity(t, "Dave Smith", "")
	k, err = ParsePublicKey(id.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "davesmith@example.com", k.Profile.Email)
}

func TestArmorMarkers(t *testing.T) {
	assert.True(t, IsArmoredMessage("-----BEGIN PGP MESSAGE-----\nx\n-----END PGP MESSAGE-----"))
	assert.False(t, IsArmoredMessage("-----BEGIN PGP MESSAGE-----\nx"))
	assert.False(t, IsArmoredPublicKey("-----BEGIN PGP MESSAGE-----\nx\n-----END PGP MESSAGE-----"))
}
