package domain

import "errors"

var (
	ErrInvalidPublicKey  = errors.New("invalid PGP public key format")
	ErrInvalidCiphertext = errors.New("invalid PGP message format")
	ErrNotRegistered     = errors.New("not registered")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrUserNotFound      = errors.New("target user not found")
	ErrInviteNotFound    = errors.New("invite link not found")
	ErrBanned            = errors.New("you are banned from this room")
	ErrInviteRequired    = errors.New("a valid invite link is required to join this room")
	ErrStorage           = errors.New("storage unavailable")
	ErrInvalidRoomID     = errors.New("invalid room id: must be between 1 and 256 characters")
)
