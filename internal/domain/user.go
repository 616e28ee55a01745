// Package domain contains entities and the rules they carry, no transport or storage.
package domain

import "strings"

const MaxUsernameLen = 64

// UserID is the uppercase hex fingerprint of a member's public key.
type UserID string

// Profile is what the key's primary user id tells us about its owner.
type Profile struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Member is the public view of an authenticated session.
type Member struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	PublicKey string `json:"publicKey"`
	Role      Role   `json:"role"`
}

// TruncateName clips a display name to MaxUsernameLen runes.
func TruncateName(name string) string {
	name = strings.TrimSpace(name)
	r := []rune(name)
	if len(r) > MaxUsernameLen {
		return string(r[:MaxUsernameLen])
	}
	return name
}
