package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"QTalk/service/storage"
)

var errTest = errors.New("presence down")

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeConn) WriteControl(_ int, _ []byte, _ time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(_ time.Time) error             { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// waitFrames polls until the write pump has flushed n frames.
func (f *fakeConn) waitFrames(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.frames) >= n {
			out := append([][]byte(nil), f.frames...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Fatalf("timed out waiting for %d frames, have %d", n, len(f.frames))
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type memPresence struct {
	mu          sync.Mutex
	sessions    map[string]storage.Session
	registerErr error
}

func newMemPresence() *memPresence {
	return &memPresence{sessions: make(map[string]storage.Session)}
}

func (p *memPresence) Register(_ context.Context, user string, s storage.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registerErr != nil {
		return p.registerErr
	}
	p.sessions[user] = s
	return nil
}

func (p *memPresence) Refresh(_ context.Context, _ string) error { return nil }

func (p *memPresence) Lookup(_ context.Context, user string) (storage.Session, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[user]
	return s, ok, nil
}

func (p *memPresence) Unregister(_ context.Context, user, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[user]; ok && s.SessionID == sessionID {
		delete(p.sessions, user)
	}
	return nil
}

func (p *memPresence) ListAll(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]string, 0, len(p.sessions))
	for u := range p.sessions {
		users = append(users, u)
	}
	return users, nil
}

func decodeFrame(t *testing.T, raw []byte) Frame {
	t.Helper()
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode frame %s: %v", raw, err)
	}
	return f
}

func TestEmitToUserReachesLocalSession(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	conn := &fakeConn{}
	c := NewClient("s1", "alice", conn)
	if err := hub.Register(context.Background(), c, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer hub.Unregister(context.Background(), c)

	if err := hub.EmitToUser(context.Background(), "alice", EventNewMessage, map[string]string{"text": "hi"}); err != nil {
		t.Fatalf("EmitToUser: %v", err)
	}
	frames := conn.waitFrames(t, 1)
	got := decodeFrame(t, frames[0])
	if got.Event != EventNewMessage {
		t.Errorf("event = %q, want %q", got.Event, EventNewMessage)
	}
	want, _ := EncodeFrame(EventNewMessage, map[string]string{"text": "hi"})
	if string(frames[0]) != string(want) {
		t.Errorf("frame = %s, want %s", frames[0], want)
	}
}

func TestEmitToUserOfflineIsNoop(t *testing.T) {
	hub := NewHub("gw-1", newMemPresence())
	if err := hub.EmitToUser(context.Background(), "ghost", EventNewMessage, "x"); err != nil {
		t.Fatalf("EmitToUser to offline user: %v", err)
	}
}

func TestRegisterEvictsPriorSession(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	conn1 := &fakeConn{}
	conn2 := &fakeConn{}
	c1 := NewClient("s1", "alice", conn1)
	c2 := NewClient("s2", "alice", conn2)

	if err := hub.Register(context.Background(), c1, nil); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := hub.Register(context.Background(), c2, nil); err != nil {
		t.Fatalf("register second: %v", err)
	}
	defer hub.Unregister(context.Background(), c2)

	if s, ok, _ := pres.Lookup(context.Background(), "alice"); !ok || s.SessionID != "s2" {
		t.Errorf("presence = %+v ok=%v, want session s2", s, ok)
	}

	if err := hub.EmitToUser(context.Background(), "alice", EventNewMessage, "hello"); err != nil {
		t.Fatalf("EmitToUser: %v", err)
	}
	conn2.waitFrames(t, 1)
	if n := conn1.frameCount(); n != 0 {
		t.Errorf("evicted session received %d frames", n)
	}
}

func TestRegisterPresenceFailureRollsBack(t *testing.T) {
	pres := newMemPresence()
	pres.registerErr = errTest
	hub := NewHub("gw-1", pres)
	conn := &fakeConn{}
	c := NewClient("s1", "alice", conn)

	if err := hub.Register(context.Background(), c, []string{"g1"}); err == nil {
		t.Fatal("Register succeeded with presence down")
	}

	hub.mu.RLock()
	nSessions, nUsers, nRooms := len(hub.sessions), len(hub.byUser), len(hub.rooms)
	hub.mu.RUnlock()
	if nSessions != 0 || nUsers != 0 || nRooms != 0 {
		t.Errorf("local state after failed register: sessions=%d byUser=%d rooms=%d", nSessions, nUsers, nRooms)
	}

	if err := hub.EmitToRoom(context.Background(), "g1", EventNewMessage, "hi"); err != nil {
		t.Fatalf("EmitToRoom: %v", err)
	}
	if n := conn.frameCount(); n != 0 {
		t.Errorf("rolled-back session received %d frames", n)
	}

	// A fresh attempt for the same user must start clean.
	pres.registerErr = nil
	c2 := NewClient("s2", "alice", &fakeConn{})
	if err := hub.Register(context.Background(), c2, nil); err != nil {
		t.Fatalf("retry register: %v", err)
	}
	hub.Unregister(context.Background(), c2)
}

func TestUnregisterStaleSessionKeepsPresence(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	c1 := NewClient("s1", "alice", &fakeConn{})
	c2 := NewClient("s2", "alice", &fakeConn{})

	_ = hub.Register(context.Background(), c1, nil)
	_ = hub.Register(context.Background(), c2, nil)

	// The old socket's read loop ends after the eviction; its teardown
	// must not wipe the new session's presence entry.
	hub.Unregister(context.Background(), c1)

	if s, ok, _ := pres.Lookup(context.Background(), "alice"); !ok || s.SessionID != "s2" {
		t.Errorf("presence = %+v ok=%v, want s2 to survive", s, ok)
	}
	hub.Unregister(context.Background(), c2)
	if _, ok, _ := pres.Lookup(context.Background(), "alice"); ok {
		t.Error("presence survived the live session's unregister")
	}
}

func TestEmitToRoom(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	connA := &fakeConn{}
	connB := &fakeConn{}
	connC := &fakeConn{}
	a := NewClient("sa", "alice", connA)
	b := NewClient("sb", "bob", connB)
	c := NewClient("sc", "carol", connC)

	_ = hub.Register(context.Background(), a, []string{"g1"})
	_ = hub.Register(context.Background(), b, []string{"g1"})
	_ = hub.Register(context.Background(), c, nil)
	defer func() {
		hub.Unregister(context.Background(), a)
		hub.Unregister(context.Background(), b)
		hub.Unregister(context.Background(), c)
	}()

	if err := hub.EmitToRoom(context.Background(), "g1", EventNewMessage, "hi"); err != nil {
		t.Fatalf("EmitToRoom: %v", err)
	}
	connA.waitFrames(t, 1)
	connB.waitFrames(t, 1)
	if n := connC.frameCount(); n != 0 {
		t.Errorf("non-member received %d frames", n)
	}
}

func TestJoinRoomMidSession(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	conn := &fakeConn{}
	c := NewClient("s1", "alice", conn)
	_ = hub.Register(context.Background(), c, nil)
	defer hub.Unregister(context.Background(), c)

	hub.JoinRoom("alice", "g9")
	if err := hub.EmitToRoom(context.Background(), "g9", EventNewMessage, "hi"); err != nil {
		t.Fatalf("EmitToRoom: %v", err)
	}
	conn.waitFrames(t, 1)
}

func TestBroadcastRoster(t *testing.T) {
	pres := newMemPresence()
	hub := NewHub("gw-1", pres)
	conn := &fakeConn{}
	c := NewClient("s1", "alice", conn)
	_ = hub.Register(context.Background(), c, nil)
	defer hub.Unregister(context.Background(), c)

	hub.BroadcastRoster(context.Background())

	frames := conn.waitFrames(t, 1)
	got := decodeFrame(t, frames[0])
	if got.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", got.Event, EventOnlineUsers)
	}
	var users []string
	if err := json.Unmarshal(got.Payload, &users); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(users) != 1 || users[0] != "alice" {
		t.Errorf("users = %v, want [alice]", users)
	}
}
