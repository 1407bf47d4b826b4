package relay

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"QTalk/logger"
)

// Relay forwards push events between gateway processes. Two subject
// families:
//
//	gw.<gatewayID>   one subscriber per gateway; used when a presence
//	                 lookup points at a session owned by another node
//	rooms.<groupID>  broadcast; every gateway subscribes rooms.> and
//	                 delivers to its locally subscribed room members
//
// A nil *Relay is valid and means single-node mode: publishes become
// no-ops and only local delivery happens.

const (
	gatewaySubjectPrefix = "gw."
	roomSubjectPrefix    = "rooms."
)

// SessionEnvelope targets one websocket session on a specific gateway.
type SessionEnvelope struct {
	SessionID string          `json:"sessionId"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
}

// RoomEnvelope targets every member of a room, cluster-wide. Origin lets
// the publishing gateway skip its own broadcast (it already delivered
// locally).
type RoomEnvelope struct {
	GroupID string          `json:"groupId"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin"`
}

type Handlers struct {
	OnSession func(SessionEnvelope)
	OnRoom    func(RoomEnvelope)
}

type Relay struct {
	nc        *nats.Conn
	gatewayID string
	sessSub   *nats.Subscription
	roomSub   *nats.Subscription
}

// Connect dials NATS and installs the subscriptions. Handlers must not
// block; they run on the NATS delivery goroutine.
func Connect(url, gatewayID string, h Handlers) (*Relay, error) {
	nc, err := nats.Connect(url,
		nats.Name("qtalk-"+gatewayID),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	r := &Relay{nc: nc, gatewayID: gatewayID}

	r.sessSub, err = nc.Subscribe(gatewaySubjectPrefix+gatewayID, func(m *nats.Msg) {
		var env SessionEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Errorf("relay: bad session envelope on %s: %v", m.Subject, err)
			return
		}
		if h.OnSession != nil {
			h.OnSession(env)
		}
	})
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "nats subscribe gateway subject")
	}

	r.roomSub, err = nc.Subscribe(roomSubjectPrefix+">", func(m *nats.Msg) {
		var env RoomEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			logger.Errorf("relay: bad room envelope on %s: %v", m.Subject, err)
			return
		}
		if env.Origin == gatewayID {
			return
		}
		if h.OnRoom != nil {
			h.OnRoom(env)
		}
	})
	if err != nil {
		_ = r.sessSub.Unsubscribe()
		nc.Close()
		return nil, errors.Wrap(err, "nats subscribe room subject")
	}
	return r, nil
}

// PublishSession sends an envelope to the gateway that owns the session.
func (r *Relay) PublishSession(targetGateway string, env SessionEnvelope) error {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "relay marshal")
	}
	return errors.Wrap(r.nc.Publish(gatewaySubjectPrefix+targetGateway, data), "relay publish")
}

// PublishRoom broadcasts a room event to all gateways.
func (r *Relay) PublishRoom(env RoomEnvelope) error {
	if r == nil {
		return nil
	}
	env.Origin = r.gatewayID
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "relay marshal")
	}
	return errors.Wrap(r.nc.Publish(roomSubjectPrefix+env.GroupID, data), "relay publish")
}

func (r *Relay) Close() {
	if r == nil {
		return
	}
	_ = r.sessSub.Unsubscribe()
	_ = r.roomSub.Unsubscribe()
	r.nc.Close()
}
