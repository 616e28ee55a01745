package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestInviteUsable(t *testing.T) {
	now := time.UnixMilli(1_000_000)

	t.Run("no limits", func(t *testing.T) {
		l := &InviteLink{ID: "abcdEFGH", Role: RoleUser}
		assert.True(t, l.Usable(now))
	})
	t.Run("cap reached", func(t *testing.T) {
		l := &InviteLink{MaxUsage: intPtr(1)}
		assert.True(t, l.Usable(now))
		l.UsageCount = 1
		assert.False(t, l.Usable(now))
	})
	t.Run("expired ignores usage", func(t *testing.T) {
		l := &InviteLink{ExpiresAt: int64Ptr(now.UnixMilli() - 1), MaxUsage: intPtr(10)}
		assert.False(t, l.Usable(now))
	})
	t.Run("expires exactly now", func(t *testing.T) {
		l := &InviteLink{ExpiresAt: int64Ptr(now.UnixMilli())}
		assert.True(t, l.Usable(now))
	})
}

func TestInvitesCloneIsDeep(t *testing.T) {
	s := Invites{"a": {ID: "a", UsageCount: 1}}
	c := s.Clone()
	c["a"].UsageCount = 5
	require.Equal(t, 1, s["a"].UsageCount)
}

func TestBanList(t *testing.T) {
	l := BanList{
		{Kind: BanFingerprint, Value: "F1"},
		{Kind: BanIP, Value: "10.0.0.1"},
		{Kind: BanIP, Value: UnknownAddress},
	}

	assert.True(t, l.Banned("F1", ""))
	assert.True(t, l.Banned("F2", "10.0.0.1"))
	assert.False(t, l.Banned("F2", "10.0.0.2"))
	assert.False(t, l.Banned("F2", ""))
	assert.False(t, l.Banned("F2", UnknownAddress), "sentinel must never match")

	l = l.Without(BanIP, "10.0.0.1")
	assert.Len(t, l, 2)
	assert.False(t, l.Banned("F2", "10.0.0.1"))
	l = l.Without(BanIP, "F1")
	assert.True(t, l.Banned("F1", ""), "kind must match too")
}

func TestRoomConfigClone(t *testing.T) {
	c := NewRoomConfig("F1")
	c.Privacy = DefaultPrivacy()
	d := c.Clone()
	d.Privacy.RequireInviteToJoin = true
	d.MessageCount = 9
	assert.False(t, c.Privacy.RequireInviteToJoin)
	assert.Zero(t, c.MessageCount)
	assert.Equal(t, RoomPublic, c.Type)
	assert.True(t, c.EnableMessageCount)
}

func TestRoomIDValid(t *testing.T) {
	assert.False(t, RoomID("").Valid())
	assert.True(t, RoomID("Ab3").Valid())
	long := make([]rune, MaxRoomIDLen)
	for i := range long {
		long[i] = 'é'
	}
	assert.True(t, RoomID(string(long)).Valid())
	assert.False(t, RoomID(string(long)+"x").Valid())
}

func TestRoleValid(t *testing.T) {
	for _, r := range AllRoles {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
}
