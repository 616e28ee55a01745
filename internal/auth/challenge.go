// Package auth implements the challenge-response proof of key possession and the
// role a freshly authenticated identity receives.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/pgp"
)

const (
	ChallengeLen = 128
	DefaultTTL   = 30 * time.Second

	base62 = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrNoChallenge       = errors.New("no pending challenge, register again")
	ErrChallengeExpired  = errors.New("challenge expired, register again")
	ErrChallengeMismatch = errors.New("challenge verification failed, key mismatch")
)

// Challenge is the pending state between register and challengeResponse.
type Challenge struct {
	Plaintext string
	IssuedAt  time.Time
	Key       *pgp.PublicKey
	InviteID  string
}

// Challenger holds pending challenges for one room. Not safe for concurrent use;
// the owning room serializes access.
type Challenger struct {
	ttl     time.Duration
	now     func() time.Time
	gen     func() string
	pending map[core.SessionID]*Challenge
}

func NewChallenger(ttl time.Duration, now func() time.Time) (*Challenger, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	gen, err := nanoid.CustomASCII(base62, ChallengeLen)
	if err != nil {
		return nil, fmt.Errorf("challenge generator: %w", err)
	}
	return &Challenger{
		ttl:     ttl,
		now:     now,
		gen:     gen,
		pending: make(map[core.SessionID]*Challenge),
	}, nil
}

// Issue stores a fresh challenge for sid, replacing any earlier one, and returns it
// encrypted to key. The key must be valid on the challenger's clock.
func (c *Challenger) Issue(sid core.SessionID, key *pgp.PublicKey, inviteID string) (string, error) {
	now := c.now()
	plain := c.gen()
	encrypted, err := key.Encrypt(plain, now)
	if err != nil {
		return "", err
	}
	c.pending[sid] = &Challenge{
		Plaintext: plain,
		IssuedAt:  now,
		Key:       key,
		InviteID:  inviteID,
	}
	return encrypted, nil
}

// Verify consumes the pending challenge for sid whatever the outcome.
func (c *Challenger) Verify(sid core.SessionID, response string) (*Challenge, error) {
	ch, ok := c.pending[sid]
	if !ok {
		return nil, ErrNoChallenge
	}
	delete(c.pending, sid)
	if c.now().Sub(ch.IssuedAt) >= c.ttl {
		return nil, ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(response), []byte(ch.Plaintext)) != 1 {
		return nil, ErrChallengeMismatch
	}
	return ch, nil
}

func (c *Challenger) Discard(sid core.SessionID) {
	delete(c.pending, sid)
}

// Sweep drops expired challenges and returns how many were removed.
func (c *Challenger) Sweep() int {
	now := c.now()
	n := 0
	for sid, ch := range c.pending {
		if now.Sub(ch.IssuedAt) >= c.ttl {
			delete(c.pending, sid)
			n++
		}
	}
	return n
}

func (c *Challenger) Pending() int { return len(c.pending) }
