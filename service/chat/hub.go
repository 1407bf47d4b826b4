package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"QTalk/logger"
	"QTalk/service/relay"
	"QTalk/service/storage"
)

// Presence is the slice of the presence directory the hub needs.
type Presence interface {
	Register(ctx context.Context, user string, s storage.Session) error
	Refresh(ctx context.Context, user string) error
	Lookup(ctx context.Context, user string) (storage.Session, bool, error)
	Unregister(ctx context.Context, user, sessionID string) error
	ListAll(ctx context.Context) ([]string, error)
}

// rosterRoom is a synthetic room every connection joins, so online-user
// roster updates ride the same room machinery (including the relay) as
// group messages.
const rosterRoom = "_all"

// Hub bridges connection lifecycle events to the presence directory and
// routes pushes: to a local socket when the target session lives here,
// through the relay when it lives on another gateway.
type Hub struct {
	gatewayID string
	presence  Presence
	relay     *relay.Relay // nil in single-node mode

	mu       sync.RWMutex
	sessions map[string]*Client            // sessionID -> client
	byUser   map[string]*Client            // userID -> current client
	rooms    map[string]map[string]*Client // groupID -> sessionID -> client
	inRooms  map[string]map[string]bool    // sessionID -> groupIDs
}

func NewHub(gatewayID string, presence Presence) *Hub {
	return &Hub{
		gatewayID: gatewayID,
		presence:  presence,
		sessions:  make(map[string]*Client),
		byUser:    make(map[string]*Client),
		rooms:     make(map[string]map[string]*Client),
		inRooms:   make(map[string]map[string]bool),
	}
}

// SetRelay attaches the cross-gateway relay. Call before serving traffic.
func (h *Hub) SetRelay(r *relay.Relay) { h.relay = r }

// RelayHandlers returns the callbacks the relay invokes for inbound
// envelopes from peer gateways.
func (h *Hub) RelayHandlers() relay.Handlers {
	return relay.Handlers{
		OnSession: h.deliverSessionEnvelope,
		OnRoom:    h.deliverRoomEnvelope,
	}
}

// Register wires a freshly upgraded connection: evicts the user's prior
// session (most recent wins), joins the group rooms, records presence,
// and starts the write pump.
func (h *Hub) Register(ctx context.Context, c *Client, groupIDs []string) error {
	h.mu.Lock()
	if old, ok := h.byUser[c.UserID]; ok {
		h.removeLocked(old)
		old.close()
	}
	h.sessions[c.SessionID] = c
	h.byUser[c.UserID] = c
	h.joinLocked(c, rosterRoom)
	for _, gid := range groupIDs {
		h.joinLocked(c, gid)
	}
	h.mu.Unlock()

	go c.writePump()

	err := h.presence.Register(ctx, c.UserID, storage.Session{
		GatewayID: h.gatewayID,
		SessionID: c.SessionID,
	})
	if err != nil {
		// Roll the local registration back so a session without a
		// presence entry never lingers in the maps. Liveness check
		// because a concurrent re-register may have evicted it already.
		h.mu.Lock()
		if _, live := h.sessions[c.SessionID]; live {
			h.removeLocked(c)
			c.close()
		}
		h.mu.Unlock()
		return errors.Wrap(err, "hub register")
	}
	return nil
}

// Unregister tears the session down. No-op when the session was already
// evicted by a newer one; in that case its presence entry has been
// overwritten too, and the guarded Unregister leaves it alone.
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	_, live := h.sessions[c.SessionID]
	if live {
		h.removeLocked(c)
		c.close()
	}
	h.mu.Unlock()
	if !live {
		return
	}
	if err := h.presence.Unregister(ctx, c.UserID, c.SessionID); err != nil {
		logger.Errorf("presence unregister user=%s: %v", c.UserID, err)
	}
}

// JoinRoom subscribes the user's live connection, if any, to a group
// room. Called when a user accepts a group invite mid-session.
func (h *Hub) JoinRoom(userID, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.byUser[userID]; ok {
		h.joinLocked(c, groupID)
	}
}

// OnPong renews the presence TTL for a live connection.
func (h *Hub) OnPong(ctx context.Context, userID string) {
	if err := h.presence.Refresh(ctx, userID); err != nil {
		logger.Debug("presence refresh failed: " + err.Error())
	}
}

// EmitToUser pushes an event to the user's active session, wherever it
// lives. A user without a presence entry is offline: silently skipped,
// never an error.
func (h *Hub) EmitToUser(ctx context.Context, userID, event string, payload any) error {
	sess, online, err := h.presence.Lookup(ctx, userID)
	if err != nil {
		return err
	}
	if !online {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "emit marshal")
	}

	if sess.GatewayID == h.gatewayID || sess.GatewayID == "" {
		frame, err := json.Marshal(Frame{Event: event, Payload: raw})
		if err != nil {
			return err
		}
		h.deliverLocal(sess.SessionID, frame)
		return nil
	}
	return h.relay.PublishSession(sess.GatewayID, relay.SessionEnvelope{
		SessionID: sess.SessionID,
		Event:     event,
		Payload:   raw,
	})
}

// EmitToRoom pushes an event to every connection subscribed to the room,
// on this gateway directly and on peers via the relay. Members without a
// live subscription simply miss the push; they recover on next fetch.
func (h *Hub) EmitToRoom(_ context.Context, groupID, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "emit marshal")
	}
	frame, err := json.Marshal(Frame{Event: event, Payload: raw})
	if err != nil {
		return err
	}
	h.broadcastRoomLocal(groupID, frame)
	return h.relay.PublishRoom(relay.RoomEnvelope{
		GroupID: groupID,
		Event:   event,
		Payload: raw,
	})
}

// BroadcastRoster pushes the current online-user list to everyone.
func (h *Hub) BroadcastRoster(ctx context.Context) {
	users, err := h.presence.ListAll(ctx)
	if err != nil {
		logger.Errorf("roster scan: %v", err)
		return
	}
	if users == nil {
		users = []string{}
	}
	if err := h.EmitToRoom(ctx, rosterRoom, EventOnlineUsers, users); err != nil {
		logger.Errorf("roster broadcast: %v", err)
	}
}

// ---- internal ----

func (h *Hub) joinLocked(c *Client, groupID string) {
	room := h.rooms[groupID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[groupID] = room
	}
	room[c.SessionID] = c

	mine := h.inRooms[c.SessionID]
	if mine == nil {
		mine = make(map[string]bool)
		h.inRooms[c.SessionID] = mine
	}
	mine[groupID] = true
}

func (h *Hub) removeLocked(c *Client) {
	delete(h.sessions, c.SessionID)
	if h.byUser[c.UserID] == c {
		delete(h.byUser, c.UserID)
	}
	for gid := range h.inRooms[c.SessionID] {
		if room := h.rooms[gid]; room != nil {
			delete(room, c.SessionID)
			if len(room) == 0 {
				delete(h.rooms, gid)
			}
		}
	}
	delete(h.inRooms, c.SessionID)
}

func (h *Hub) deliverLocal(sessionID string, frame []byte) bool {
	h.mu.RLock()
	c, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(frame)
}

func (h *Hub) broadcastRoomLocal(groupID string, frame []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[groupID]))
	for _, c := range h.rooms[groupID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.enqueue(frame)
	}
}

func (h *Hub) deliverSessionEnvelope(env relay.SessionEnvelope) {
	frame, err := json.Marshal(Frame{Event: env.Event, Payload: env.Payload})
	if err != nil {
		return
	}
	h.deliverLocal(env.SessionID, frame)
}

func (h *Hub) deliverRoomEnvelope(env relay.RoomEnvelope) {
	frame, err := json.Marshal(Frame{Event: env.Event, Payload: env.Payload})
	if err != nil {
		return
	}
	h.broadcastRoomLocal(env.GroupID, frame)
}
