package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Cipher/internal/domain"
)

func TestDecodeAllTypes(t *testing.T) {
	cases := map[string]Inbound{
		`{"type":"register","publicKey":"k","inviteId":"abc"}`:          Register{PublicKey: "k", InviteID: "abc"},
		`{"type":"challengeResponse","response":"r"}`:                   ChallengeResponse{Response: "r"},
		`{"type":"getUsers"}`:                                           GetUsers{},
		`{"type":"convertRoomType","targetType":"private"}`:             ConvertRoomType{TargetType: domain.RoomPrivate},
		`{"type":"kickUser","targetUserId":"A","reason":"spam"}`:        KickUser{TargetUserID: "A", Reason: "spam"},
		`{"type":"banUser","targetUserId":"A","banType":"ip"}`:          BanUser{TargetUserID: "A", BanType: domain.BanIP},
		`{"type":"unban","banType":"keyFingerprint","value":"A"}`:       Unban{BanType: domain.BanFingerprint, Value: "A"},
		`{"type":"changeRole","targetUserId":"A","newRole":"admin"}`:    ChangeRole{TargetUserID: "A", NewRole: domain.RoleAdmin},
		`{"type":"getBanList"}`:                                         GetBanList{},
		`{"type":"getInviteLinks"}`:                                     GetInviteLinks{},
		`{"type":"deleteInviteLink","inviteId":"x"}`:                    DeleteInviteLink{InviteID: "x"},
		`{"type":"transferCreator","targetUserId":"B"}`:                 TransferCreator{TargetUserID: "B"},
		`{"type":"updateMessageCountConfig","enableMessageCount":true}`: UpdateMessageCountConfig{EnableMessageCount: true},
		`{"type":"ping"}`: Ping{},
		`{"type":"pong"}`: Pong{},
		`{"type":"updatePrivacyConfig","config":{"requireInviteToJoin":true}}`: UpdatePrivacyConfig{Config: &domain.PrivacyConfig{RequireInviteToJoin: true}},
	}
	for raw, want := range cases {
		got, err := Decode([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
		assert.Equal(t, want.MessageType(), got.MessageType())
	}
}

func TestDecodeMessageWithSync(t *testing.T) {
	raw := `{"type":"message","encryptedData":"x","targetUserIds":["B"],
		"syncedFrom":{"originalSenderId":"A","originalTimestamp":7,"originalMessageNumber":3,"syncedBy":"C"},
		"replyTo":{"senderId":"A","timestamp":5}}`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	m := got.(Message)
	require.NotNil(t, m.SyncedFrom)
	assert.EqualValues(t, 3, *m.SyncedFrom.OriginalMessageNumber)
	assert.Equal(t, []domain.UserID{"B"}, m.TargetUserIDs)
	assert.Nil(t, m.ReplyTo.MessageNumber)
}

func TestDecodeGenerateInvite(t *testing.T) {
	got, err := Decode([]byte(`{"type":"generateInvite","role":"user","expiresIn":60000,"maxUsage":1}`))
	require.NoError(t, err)
	inv := got.(GenerateInvite)
	assert.EqualValues(t, 60000, *inv.ExpiresIn)
	assert.Equal(t, 1, *inv.MaxUsage)

	_, err = Decode([]byte(`{"type":"generateInvite","role":"user","maxUsage":0}`))
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrBadJSON)

	_, err = Decode([]byte(`{"type":"dance"}`))
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "dance", unknown.Type)

	_, err = Decode([]byte(`{"type":"register","publicKey":42}`))
	assert.ErrorIs(t, err, ErrBadJSON)

	for _, raw := range []string{
		`{"type":"convertRoomType","targetType":"secret"}`,
		`{"type":"banUser","targetUserId":"A","banType":"mac"}`,
		`{"type":"changeRole","targetUserId":"A","newRole":"owner"}`,
		`{"type":"updatePrivacyConfig"}`,
	} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestEncodeShapes(t *testing.T) {
	f, err := Encode(EncryptedMessage{Type: TypeEncryptedMessage, SenderID: "A", EncryptedData: "x", Timestamp: 1})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(f, &m))
	assert.Equal(t, "encryptedMessage", m["type"])
	assert.NotContains(t, m, "messageNumber")
	assert.NotContains(t, m, "syncedFrom")

	f, err = Encode(NewPermissionDenied("kickUser", "no"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"permissionDenied","action":"kickUser","reason":"no"}`, string(f))
}
