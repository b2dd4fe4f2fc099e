package session

import (
	"log/slog"
	"sync"
)

// Conn is one subscriber's send side. Send must be safe for concurrent
// callers and return an error once the connection is unusable.
type Conn interface {
	Send(frame any) error
}

// room is the set of live connections for one trip. pub serializes the
// operations that must see a consistent message log: joining (snapshot +
// registration) and publishing (persist + broadcast). With both under the
// same lock a joiner either sees a message in its history snapshot or
// receives it live, never both and never neither.
type room struct {
	mu    sync.Mutex
	pub   sync.Mutex
	conns map[Conn]struct{}
}

// Registry tracks the rooms of all active trips. Construct one per server;
// rooms are created on first join and dropped when their last member leaves.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]*room),
		logger: logger,
	}
}

func (r *Registry) roomFor(tripID string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[tripID]
	if !ok {
		rm = &room{conns: make(map[Conn]struct{})}
		r.rooms[tripID] = rm
	}
	return rm
}

// Join registers conn in the trip's room. snapshot is invoked under the
// room's publish lock and its result sent to conn before any later publish
// can reach it, so the history frame and the live stream never overlap or
// leave a gap.
//
// A concurrent Leave of the room's last member can drop the room from the
// map after roomFor handed it out; registering into that orphan would cut
// the joiner off from all later traffic. Registration therefore re-checks,
// under the registry lock, that the locked room is still the mapped one,
// and starts over against the fresh room when it is not. Once registered
// the room is non-empty, so Leave cannot drop it.
func (r *Registry) Join(tripID string, conn Conn, snapshot func() (any, error)) error {
	for {
		rm := r.roomFor(tripID)

		rm.pub.Lock()

		var frame any
		if snapshot != nil {
			var err error
			frame, err = snapshot()
			if err != nil {
				rm.pub.Unlock()
				return err
			}
		}

		r.mu.Lock()
		if r.rooms[tripID] != rm {
			r.mu.Unlock()
			rm.pub.Unlock()
			continue
		}
		rm.mu.Lock()
		rm.conns[conn] = struct{}{}
		rm.mu.Unlock()
		r.mu.Unlock()

		if snapshot != nil {
			if err := conn.Send(frame); err != nil {
				rm.pub.Unlock()
				r.Leave(tripID, conn)
				return err
			}
		}
		rm.pub.Unlock()
		return nil
	}
}

// Leave removes conn from the trip's room, dropping the room when empty.
func (r *Registry) Leave(tripID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[tripID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.conns, conn)
	empty := len(rm.conns) == 0
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, tripID)
	}
}

// Publish atomically persists a message and delivers it to every member.
// persist runs under the publish lock; its result (the stored message,
// wrapped in a frame by the caller via the returned value) is broadcast
// before any join snapshot can run in between.
func (r *Registry) Publish(tripID string, persist func() (any, error)) error {
	rm := r.roomFor(tripID)

	rm.pub.Lock()
	defer rm.pub.Unlock()

	frame, err := persist()
	if err != nil {
		return err
	}
	r.deliver(tripID, rm, frame, nil)
	return nil
}

// Broadcast sends a transient frame (presence, status) to the room,
// optionally skipping one connection. No ordering guarantees against
// history snapshots are needed for these.
func (r *Registry) Broadcast(tripID string, frame any, skip Conn) {
	r.mu.Lock()
	rm, ok := r.rooms[tripID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.deliver(tripID, rm, frame, skip)
}

// deliver fans a frame out to the room's members, pruning connections
// whose send fails.
func (r *Registry) deliver(tripID string, rm *room, frame any, skip Conn) {
	rm.mu.Lock()
	conns := make([]Conn, 0, len(rm.conns))
	for c := range rm.conns {
		if c != skip {
			conns = append(conns, c)
		}
	}
	rm.mu.Unlock()

	var dead []Conn
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			r.logger.Debug("dropping dead connection", "trip", tripID, "err", err)
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		r.Leave(tripID, c)
	}
}

// Members reports the current size of a trip's room.
func (r *Registry) Members(tripID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[tripID]
	if !ok {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.conns)
}
