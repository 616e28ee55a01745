package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/storage"
)

// Record keys, one value each per room.
const (
	keyConfig    = "config"
	keyInvites   = "invites"
	keyBanList   = "banList"
	keyUserRoles = "userRoles"
	keyLastSeen  = "userLastSeenMessageCount"
)

var recordKeys = []string{keyConfig, keyInvites, keyBanList, keyUserRoles, keyLastSeen}

type roomState struct {
	config   *domain.RoomConfig
	invites  domain.Invites
	bans     domain.BanList
	roles    map[domain.UserID]domain.Role
	lastSeen map[domain.UserID]int64
}

type banListRecord struct {
	Records domain.BanList `json:"records"`
}

func emptyState() *roomState {
	return &roomState{
		invites:  domain.Invites{},
		bans:     domain.BanList{},
		roles:    map[domain.UserID]domain.Role{},
		lastSeen: map[domain.UserID]int64{},
	}
}

func (s *roomState) initialized() bool { return s.config != nil }

func (s *roomState) privacy() *domain.PrivacyConfig {
	if s.config == nil {
		return nil
	}
	return s.config.Privacy
}

func (s *roomState) counter() int64 {
	if s.config == nil {
		return 0
	}
	return s.config.MessageCount
}

func (s *roomState) cloneRoles() map[domain.UserID]domain.Role {
	return maps.Clone(s.roles)
}

func (s *roomState) cloneLastSeen() map[domain.UserID]int64 {
	return maps.Clone(s.lastSeen)
}

// record returns the committed in-memory value stored under key.
func (s *roomState) record(key string) any {
	switch key {
	case keyConfig:
		return s.config
	case keyInvites:
		return s.invites
	case keyBanList:
		return banListRecord{Records: s.bans}
	case keyUserRoles:
		return s.roles
	case keyLastSeen:
		return s.lastSeen
	}
	return nil
}

// write is one staged record; it is committed to memory only after every
// write of the operation reached the store.
type write struct {
	key   string
	value any
}

func (r *Room) restore(ctx context.Context) error {
	st := emptyState()
	var bans banListRecord
	targets := map[string]any{
		keyConfig:    &st.config,
		keyInvites:   &st.invites,
		keyBanList:   &bans,
		keyUserRoles: &st.roles,
		keyLastSeen:  &st.lastSeen,
	}
	for _, key := range recordKeys {
		if err := r.load(ctx, key, targets[key]); err != nil {
			return err
		}
	}
	st.bans = bans.Records
	if st.invites == nil {
		st.invites = domain.Invites{}
	}
	if st.bans == nil {
		st.bans = domain.BanList{}
	}
	if st.roles == nil {
		st.roles = map[domain.UserID]domain.Role{}
	}
	if st.lastSeen == nil {
		st.lastSeen = map[domain.UserID]int64{}
	}
	r.state = st
	return nil
}

func (r *Room) load(ctx context.Context, key string, dst any) error {
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	b, err := r.store.Get(cctx, string(r.id), key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Room) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return r.store.Put(cctx, string(r.id), key, b)
}

// persist writes every staged record in order. On failure the records already
// written are restored from memory and ErrStorage is returned.
func (r *Room) persist(ctx context.Context, writes ...write) error {
	written := make([]string, 0, len(writes))
	for _, w := range writes {
		if err := r.put(ctx, w.key, w.value); err != nil {
			r.log.Error().Err(err).Str("key", w.key).Msg("persist failed")
			r.rollback(ctx, written)
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		written = append(written, w.key)
	}
	return nil
}

func (r *Room) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := r.put(ctx, key, r.state.record(key)); err != nil {
			r.log.Error().Err(err).Str("key", key).Msg("rollback failed")
		}
	}
}

// purge forgets the room entirely once its last member has left.
func (r *Room) purge(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := r.store.DeleteAll(cctx, string(r.id)); err != nil {
		r.log.Error().Err(err).Msg("purge failed")
	}
	r.state = emptyState()
	r.origin = r.defaultOrigin
	r.log.Info().Msg("room emptied, state purged")
}
