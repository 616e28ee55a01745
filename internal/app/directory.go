// Package app owns the set of running room actors.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Cipher/internal/domain"
	"github.com/dkeye/Cipher/internal/room"
)

var ErrClosed = errors.New("directory is shutting down")

const roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

type entry struct {
	room *room.Room
	refs int
}

// RoomInfo is a point-in-time view of one running actor.
type RoomInfo struct {
	ID          domain.RoomID
	Connections int
}

// Directory starts an actor on the first connection to a room and stops it
// when the last connection is released. A room id never has two live actors:
// a new actor waits for the previous one to exit before it restores state.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*entry
	stopping map[domain.RoomID]<-chan struct{}

	ctx      context.Context
	group    *errgroup.Group
	template room.Options
	newID    func() string
}

// NewDirectory runs actors under ctx. template supplies every room option but ID and After.
func NewDirectory(ctx context.Context, template room.Options) (*Directory, error) {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, domain.RoomIDLen)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}
	group, gctx := errgroup.WithContext(ctx)
	return &Directory{
		rooms:    make(map[domain.RoomID]*entry),
		stopping: make(map[domain.RoomID]<-chan struct{}),
		ctx:      gctx,
		group:    group,
		template: template,
		newID:    gen,
	}, nil
}

// NewRoomID allocates a fresh id. Nothing is reserved; the room exists once someone connects.
func (d *Directory) NewRoomID() domain.RoomID {
	return domain.RoomID(d.newID())
}

// Acquire returns the actor for id, starting it if needed, and takes a reference.
// Every successful Acquire must be paired with Release.
func (d *Directory) Acquire(id domain.RoomID) (*room.Room, error) {
	if !id.Valid() {
		return nil, domain.ErrInvalidRoomID
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if e, ok := d.rooms[id]; ok {
		e.refs++
		return e.room, nil
	}

	opts := d.template
	opts.ID = id
	opts.After = d.stopping[id]
	r, err := room.New(opts)
	if err != nil {
		return nil, err
	}
	d.rooms[id] = &entry{room: r, refs: 1}

	d.group.Go(func() error {
		if err := r.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("module", "app.directory").Str("room", string(id)).Msg("room exited")
		}
		d.mu.Lock()
		if d.stopping[id] == r.Done() {
			delete(d.stopping, id)
		}
		d.mu.Unlock()
		return nil
	})
	log.Info().Str("module", "app.directory").Str("room", string(id)).Msg("room actor started")
	return r, nil
}

// Release drops a reference taken by Acquire and stops the actor when none remain.
func (d *Directory) Release(id domain.RoomID) {
	d.mu.Lock()
	e, ok := d.rooms[id]
	if !ok {
		d.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		d.mu.Unlock()
		return
	}
	delete(d.rooms, id)
	d.stopping[id] = e.room.Done()
	d.mu.Unlock()

	if err := e.room.Stop(); err != nil && !errors.Is(err, room.ErrStopped) {
		log.Warn().Err(err).Str("module", "app.directory").Str("room", string(id)).Msg("stop room")
	}
	log.Info().Str("module", "app.directory").Str("room", string(id)).Msg("room actor released")
}

// List reports the running actors ordered by id.
func (d *Directory) List() []RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomInfo, 0, len(d.rooms))
	for id, e := range d.rooms {
		out = append(out, RoomInfo{ID: id, Connections: e.refs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Wait blocks until every actor has exited. Actors exit when the directory's
// context is cancelled or their last connection is released.
func (d *Directory) Wait() error {
	return d.group.Wait()
}
