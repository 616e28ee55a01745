// Package pgptest creates throwaway OpenPGP identities for tests.
package pgptest

import (
	"bytes"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// Identity is a full keypair plus its armored public half.
type Identity struct {
	Entity    *openpgp.Entity
	PublicKey string
}

// Created is the creation time of every generated key. It predates the fixed
// clocks tests run rooms on, so keys are valid under those clocks.
var Created = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewIdentity generates an EdDSA/X25519 keypair, fast enough for unit tests.
func NewIdentity(t testing.TB, name, email string) *Identity {
	t.Helper()
	return newIdentity(t, name, email, 0)
}

// NewExpiringIdentity is NewIdentity with keys that expire lifetime after Created.
func NewExpiringIdentity(t testing.TB, name, email string, lifetime time.Duration) *Identity {
	t.Helper()
	return newIdentity(t, name, email, uint32(lifetime/time.Second))
}

func newIdentity(t testing.TB, name, email string, lifetimeSecs uint32) *Identity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", email, &packet.Config{
		Algorithm:       packet.PubKeyAlgoEdDSA,
		Time:            func() time.Time { return Created },
		KeyLifetimeSecs: lifetimeSecs,
	})
	if err != nil {
		t.Fatalf("pgptest: new entity: %v", err)
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("pgptest: armor: %v", err)
	}
	if err := e.Serialize(w); err != nil {
		t.Fatalf("pgptest: serialize: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("pgptest: armor close: %v", err)
	}
	return &Identity{Entity: e, PublicKey: buf.String()}
}

// Decrypt opens an armored message addressed to the identity.
func (id *Identity) Decrypt(t testing.TB, armored string) string {
	t.Helper()
	block, err := armor.Decode(strings.NewReader(armored))
	if err != nil {
		t.Fatalf("pgptest: armor decode: %v", err)
	}
	md, err := openpgp.ReadMessage(block.Body, openpgp.EntityList{id.Entity}, nil, nil)
	if err != nil {
		t.Fatalf("pgptest: read message: %v", err)
	}
	out, err := io.ReadAll(md.UnverifiedBody)
	if err != nil {
		t.Fatalf("pgptest: read body: %v", err)
	}
	return string(out)
}

// Fingerprint is the uppercase hex fingerprint the server derives from the key.
func (id *Identity) Fingerprint() string {
	return strings.ToUpper(hex.EncodeToString(id.Entity.PrimaryKey.Fingerprint))
}
