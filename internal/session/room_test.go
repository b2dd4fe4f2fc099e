package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []any
	fail   bool
}

func (c *fakeConn) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) received() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.frames))
	copy(out, c.frames)
	return out
}

func TestJoinSendsSnapshotFirst(t *testing.T) {
	r := NewRegistry(nil)
	conn := &fakeConn{}

	err := r.Join("trip-1", conn, func() (any, error) {
		return "snapshot", nil
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	frames := conn.received()
	if len(frames) != 1 || frames[0] != "snapshot" {
		t.Fatalf("frames = %v", frames)
	}
	if r.Members("trip-1") != 1 {
		t.Errorf("members = %d", r.Members("trip-1"))
	}
}

func TestJoinSnapshotErrorDoesNotRegister(t *testing.T) {
	r := NewRegistry(nil)
	conn := &fakeConn{}

	err := r.Join("trip-1", conn, func() (any, error) {
		return nil, errors.New("store down")
	})
	if err == nil {
		t.Fatal("expected snapshot error")
	}
	if r.Members("trip-1") != 0 {
		t.Error("failed join must not register the connection")
	}
}

func TestPublishReachesAllMembers(t *testing.T) {
	r := NewRegistry(nil)
	a, b := &fakeConn{}, &fakeConn{}
	r.Join("trip-1", a, nil)
	r.Join("trip-1", b, nil)

	if err := r.Publish("trip-1", func() (any, error) { return "hello", nil }); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for name, c := range map[string]*fakeConn{"a": a, "b": b} {
		frames := c.received()
		if len(frames) != 1 || frames[0] != "hello" {
			t.Errorf("%s frames = %v", name, frames)
		}
	}
}

func TestPublishPersistErrorSkipsBroadcast(t *testing.T) {
	r := NewRegistry(nil)
	conn := &fakeConn{}
	r.Join("trip-1", conn, nil)

	err := r.Publish("trip-1", func() (any, error) { return nil, errors.New("disk full") })
	if err == nil {
		t.Fatal("expected persist error")
	}
	if len(conn.received()) != 0 {
		t.Error("failed persist must not broadcast")
	}
}

func TestBroadcastSkipsSenderAndPrunesDead(t *testing.T) {
	r := NewRegistry(nil)
	sender, healthy, dead := &fakeConn{}, &fakeConn{}, &fakeConn{fail: true}
	r.Join("trip-1", sender, nil)
	r.Join("trip-1", healthy, nil)
	r.Join("trip-1", dead, nil)

	r.Broadcast("trip-1", "typing", sender)

	if len(sender.received()) != 0 {
		t.Error("sender should be skipped")
	}
	if got := healthy.received(); len(got) != 1 || got[0] != "typing" {
		t.Errorf("healthy frames = %v", got)
	}
	if r.Members("trip-1") != 2 {
		t.Errorf("dead connection should be pruned, members = %d", r.Members("trip-1"))
	}
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	r := NewRegistry(nil)
	conn := &fakeConn{}
	r.Join("trip-1", conn, nil)
	r.Leave("trip-1", conn)

	if r.Members("trip-1") != 0 {
		t.Errorf("members = %d", r.Members("trip-1"))
	}
	r.mu.Lock()
	_, exists := r.rooms["trip-1"]
	r.mu.Unlock()
	if exists {
		t.Error("empty room should be deleted")
	}
}

// A Leave that empties the room while a join is mid-snapshot drops the room
// from the registry; the joiner must end up in the live room, not in the
// dropped one, or every later publish would silently miss it.
func TestJoinSurvivesConcurrentLeaveOfLastMember(t *testing.T) {
	r := NewRegistry(nil)
	resident := &fakeConn{}
	r.Join("trip-1", resident, nil)

	joiner := &fakeConn{}
	left := false
	err := r.Join("trip-1", joiner, func() (any, error) {
		if !left {
			left = true
			r.Leave("trip-1", resident)
		}
		return "history", nil
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if r.Members("trip-1") != 1 {
		t.Fatalf("members = %d", r.Members("trip-1"))
	}

	if err := r.Publish("trip-1", func() (any, error) { return "msg-1", nil }); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	frames := joiner.received()
	if len(frames) != 2 || frames[0] != "history" || frames[1] != "msg-1" {
		t.Errorf("joiner frames = %v", frames)
	}
}

// A joiner must see each message exactly once: either in its snapshot or
// live, never both, never neither.
func TestJoinPublishNoDuplicateNoGap(t *testing.T) {
	r := NewRegistry(nil)
	resident := &fakeConn{}
	r.Join("trip-1", resident, nil)

	var mu sync.Mutex
	var log []string

	publish := func(i int) {
		r.Publish("trip-1", func() (any, error) {
			mu.Lock()
			log = append(log, fmt.Sprintf("msg-%d", i))
			mu.Unlock()
			return fmt.Sprintf("msg-%d", i), nil
		})
	}

	const writers = 8
	var wg sync.WaitGroup
	joined := make([]*fakeConn, writers)
	snapshots := make([][]string, writers)
	for w := 0; w < writers; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			publish(w)
		}(w)
		go func(w int) {
			defer wg.Done()
			conn := &fakeConn{}
			joined[w] = conn
			r.Join("trip-1", conn, func() (any, error) {
				mu.Lock()
				snap := make([]string, len(log))
				copy(snap, log)
				mu.Unlock()
				snapshots[w] = snap
				return "history", nil
			})
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		seen := make(map[string]int)
		for _, m := range snapshots[w] {
			seen[m]++
		}
		frames := joined[w].received()
		if len(frames) == 0 || frames[0] != "history" {
			t.Fatalf("joiner %d: history frame not first: %v", w, frames)
		}
		for _, f := range frames[1:] {
			seen[f.(string)]++
		}
		for m, n := range seen {
			if n != 1 {
				t.Errorf("joiner %d saw %s %d times", w, m, n)
			}
		}
		if len(seen) != writers {
			t.Errorf("joiner %d saw %d of %d messages", w, len(seen), writers)
		}
	}
}
