package domain

type BanKind string

const (
	BanIP          BanKind = "ip"
	BanFingerprint BanKind = "keyFingerprint"
)

func (k BanKind) Valid() bool {
	return k == BanIP || k == BanFingerprint
}

// UnknownAddress is recorded when an address ban targets a session with no known address.
// It never matches a connection.
const UnknownAddress = "unknown"

type BanRecord struct {
	Kind     BanKind `json:"type"`
	Value    string  `json:"value"`
	BannedAt int64   `json:"bannedAt"` // unix millis
	BannedBy UserID  `json:"bannedBy"`
	Reason   string  `json:"reason,omitempty"`
}

type BanList []BanRecord

// Banned reports whether the identity or the address is on the list.
func (l BanList) Banned(id UserID, addr string) bool {
	for _, r := range l {
		switch r.Kind {
		case BanFingerprint:
			if r.Value == string(id) {
				return true
			}
		case BanIP:
			if addr != "" && r.Value != UnknownAddress && r.Value == addr {
				return true
			}
		}
	}
	return false
}

// Without returns a new list with every (kind, value) match removed.
func (l BanList) Without(kind BanKind, value string) BanList {
	out := make(BanList, 0, len(l))
	for _, r := range l {
		if r.Kind == kind && r.Value == value {
			continue
		}
		out = append(out, r)
	}
	return out
}
