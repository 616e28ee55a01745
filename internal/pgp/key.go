// Package pgp wraps the OpenPGP operations the server needs: reading an armored public key,
// deriving the member's identity from it, and encrypting a challenge to it.
package pgp

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	nanoid "github.com/jaevor/go-nanoid"

	"github.com/dkeye/Cipher/internal/domain"
)

const (
	PublicKeyBlock = "PGP PUBLIC KEY BLOCK"
	MessageBlock   = "PGP MESSAGE"
)

// ErrNoEncryptionKey is reported by Encrypt for keys without an encryption subkey valid at the given time.
var ErrNoEncryptionKey = errors.New("key has no usable encryption subkey")

var (
	publicKeyBegin = "-----BEGIN " + PublicKeyBlock + "-----"
	publicKeyEnd   = "-----END " + PublicKeyBlock + "-----"
	messageBegin   = "-----BEGIN " + MessageBlock + "-----"
	messageEnd     = "-----END " + MessageBlock + "-----"
)

var fallbackSuffix = func() func() string {
	gen, err := nanoid.CustomASCII("0123456789abcdefghijklmnopqrstuvwxyz", 8)
	if err != nil {
		panic(err)
	}
	return gen
}()

// IsArmoredPublicKey only checks for the block markers.
func IsArmoredPublicKey(s string) bool {
	return strings.Contains(s, publicKeyBegin) && strings.Contains(s, publicKeyEnd)
}

// IsArmoredMessage only checks for the block markers; the payload stays opaque.
func IsArmoredMessage(s string) bool {
	return strings.Contains(s, messageBegin) && strings.Contains(s, messageEnd)
}

// PublicKey is a parsed member key.
type PublicKey struct {
	Armored string
	Profile domain.Profile

	entity *openpgp.Entity
}

// ParsePublicKey reads the first entity of an armored key block.
func ParsePublicKey(armored string) (*PublicKey, error) {
	if !IsArmoredPublicKey(armored) {
		return nil, domain.ErrInvalidPublicKey
	}
	ring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(armored))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPublicKey, err)
	}
	if len(ring) == 0 || ring[0].PrimaryKey == nil {
		return nil, domain.ErrInvalidPublicKey
	}
	e := ring[0]
	return &PublicKey{
		Armored: armored,
		Profile: profileOf(e),
		entity:  e,
	}, nil
}

// Fingerprint is the uppercase hex fingerprint of the primary key.
func (k *PublicKey) Fingerprint() domain.UserID {
	return domain.UserID(strings.ToUpper(hex.EncodeToString(k.entity.PrimaryKey.Fingerprint)))
}

// Encrypt returns plaintext encrypted to the key as an armored PGP message.
// Key and subkey validity are judged at now.
func (k *PublicKey) Encrypt(plaintext string, now time.Time) (string, error) {
	if _, ok := k.entity.EncryptionKey(now); !ok {
		return "", ErrNoEncryptionKey
	}
	cfg := &packet.Config{Time: func() time.Time { return now }}
	var buf bytes.Buffer
	aw, err := armor.Encode(&buf, MessageBlock, nil)
	if err != nil {
		return "", fmt.Errorf("armor encode: %w", err)
	}
	pw, err := openpgp.Encrypt(aw, []*openpgp.Entity{k.entity}, nil, nil, cfg)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	if _, err := pw.Write([]byte(plaintext)); err != nil {
		return "", fmt.Errorf("encrypt write: %w", err)
	}
	if err := pw.Close(); err != nil {
		return "", fmt.Errorf("encrypt close: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("armor close: %w", err)
	}
	return buf.String(), nil
}

func profileOf(e *openpgp.Entity) domain.Profile {
	p := domain.Profile{
		ID: domain.UserID(strings.ToUpper(hex.EncodeToString(e.PrimaryKey.Fingerprint))),
	}
	if id := e.PrimaryIdentity(); id != nil && id.UserId != nil {
		p.Name = strings.TrimSpace(id.UserId.Name)
		p.Email = strings.TrimSpace(id.UserId.Email)
		if p.Name == "" && p.Email == "" {
			p.Name = strings.TrimSpace(id.UserId.Id)
		}
	}
	if p.Name == "" && p.Email != "" {
		p.Name, _, _ = strings.Cut(p.Email, "@")
	}
	if p.Name == "" {
		p.Name = "User_" + fallbackSuffix()
	}
	p.Name = domain.TruncateName(p.Name)
	if p.Email == "" {
		p.Email = strings.ToLower(strings.Join(strings.Fields(p.Name), "")) + "@example.com"
	}
	return p
}
