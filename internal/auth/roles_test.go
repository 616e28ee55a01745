package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Cipher/internal/core"
	"github.com/dkeye/Cipher/internal/domain"
)

func coreSID(s string) core.SessionID { return core.SessionID(s) }

func TestAssignRole(t *testing.T) {
	now := time.UnixMilli(5_000_000)
	public := domain.NewRoomConfig("C")
	private := domain.NewRoomConfig("C")
	private.Type = domain.RoomPrivate
	private.Privacy = domain.DefaultPrivacy()
	gated := private.Clone()
	gated.Privacy.RequireInviteToJoin = true

	one := 1
	past := now.UnixMilli() - 1
	adminInvite := &domain.InviteLink{ID: "a", Role: domain.RoleAdmin}
	spent := &domain.InviteLink{ID: "b", Role: domain.RoleAdmin, UsageCount: 1, MaxUsage: &one}
	expired := &domain.InviteLink{ID: "c", Role: domain.RoleAdmin, ExpiresAt: &past}

	cases := []struct {
		name    string
		req     RoleRequest
		want    RoleDecision
		wantErr error
	}{
		{"persisted wins over invite", RoleRequest{Persisted: domain.RoleGuest, Config: private, Invite: adminInvite}, RoleDecision{Role: domain.RoleGuest}, nil},
		{"persisted wins over first", RoleRequest{Persisted: domain.RoleUser, FirstInRoom: true}, RoleDecision{Role: domain.RoleUser}, nil},
		{"first member", RoleRequest{FirstInRoom: true, Config: public}, RoleDecision{Role: domain.RoleCreator}, nil},
		{"public room", RoleRequest{Config: public, Invite: adminInvite}, RoleDecision{Role: domain.RoleUser}, nil},
		{"private with invite", RoleRequest{Config: gated, Invite: adminInvite}, RoleDecision{Role: domain.RoleAdmin, RedeemInvite: true}, nil},
		{"private spent invite gated", RoleRequest{Config: gated, Invite: spent}, RoleDecision{}, domain.ErrInviteRequired},
		{"private expired invite open", RoleRequest{Config: private, Invite: expired}, RoleDecision{Role: domain.RoleGuest}, nil},
		{"private no invite gated", RoleRequest{Config: gated}, RoleDecision{}, domain.ErrInviteRequired},
		{"private no invite open", RoleRequest{Config: private}, RoleDecision{Role: domain.RoleGuest}, nil},
		{"creator invite is ignored", RoleRequest{Config: private, Invite: &domain.InviteLink{Role: domain.RoleCreator}}, RoleDecision{Role: domain.RoleGuest}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Now = now
			got, err := AssignRole(tc.req)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
