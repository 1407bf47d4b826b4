package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"QTalk/logger"
	chatmodel "QTalk/module/chat/model"
	groupmodel "QTalk/module/group/model"
	usermodel "QTalk/module/user/model"
	"QTalk/service/chat"
	"QTalk/service/storage"
	"QTalk/tools/errs"
)

// MessageStore is the durable message collection boundary.
type MessageStore interface {
	Insert(ctx context.Context, m *chatmodel.Message) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error
	FindConversation(ctx context.Context, userA, userB string) ([]chatmodel.Message, error)
	FindByGroup(ctx context.Context, groupID string) ([]chatmodel.Message, error)
	MarkConversationRead(ctx context.Context, senderID, receiverID string) (int64, error)
	CountUnseen(ctx context.Context, receiverID string) (map[string]int64, error)
	SenderRef(ctx context.Context, senderID string) (*chatmodel.SenderRef, error)
}

// Presence is the read side of the presence directory.
type Presence interface {
	Lookup(ctx context.Context, user string) (storage.Session, bool, error)
}

// Pusher delivers live events. Delivery is best-effort: a push failure
// never fails the operation that triggered it.
type Pusher interface {
	EmitToUser(ctx context.Context, userID, event string, payload any) error
	EmitToRoom(ctx context.Context, groupID, event string, payload any) error
}

// Groups resolves group records for membership checks.
type Groups interface {
	FindByID(ctx context.Context, groupID string) (*groupmodel.Group, error)
}

// Users lists identity records for the roster endpoint.
type Users interface {
	ListOthers(ctx context.Context, excludeID string) ([]usermodel.Public, error)
}

// Conversations drives the message lifecycle: create, route, and the
// sent -> delivered -> read status machine for direct messages.
type Conversations struct {
	store    MessageStore
	presence Presence
	pusher   Pusher
	groups   Groups
	users    Users
}

func NewConversations(store MessageStore, presence Presence, pusher Pusher, groups Groups, users Users) *Conversations {
	return &Conversations{store: store, presence: presence, pusher: pusher, groups: groups, users: users}
}

// SendInput is the client-supplied part of a new message.
type SendInput struct {
	Text        string `json:"text"`
	ImageRef    string `json:"imageRef"`
	ClientMsgID string `json:"clientMsgId"`
}

func (in SendInput) validate() error {
	if in.Text == "" && in.ImageRef == "" {
		return errs.ErrValidation.WithDetail("message needs text or an image")
	}
	return nil
}

// SendDirect persists a direct message and runs the delivery leg of the
// status machine. Persistence is the durability boundary: once the
// insert succeeds the send has succeeded, whatever happens to pushes.
func (s *Conversations) SendDirect(ctx context.Context, senderID, receiverID string, in SendInput) (*chatmodel.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if receiverID == "" || receiverID == senderID {
		return nil, errs.ErrValidation.WithDetail("bad receiver")
	}

	msg := &chatmodel.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Text:        in.Text,
		ImageRef:    in.ImageRef,
		ClientMsgID: in.ClientMsgID,
		Status:      chatmodel.StatusSent,
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}

	_, online, err := s.presence.Lookup(ctx, receiverID)
	if err != nil {
		// Presence being unreachable downgrades delivery to lazy fetch;
		// the stored message is already safe.
		logger.Errorf("presence lookup receiver=%s: %v", receiverID, err)
		return msg, nil
	}
	if !online {
		return msg, nil
	}

	if err := s.pusher.EmitToUser(ctx, receiverID, chat.EventNewMessage, msg); err != nil {
		logger.Errorf("push newMessage to %s: %v", receiverID, err)
		return msg, nil
	}

	// Receiver had a live session: advance sent -> delivered.
	msg.Status = chatmodel.StatusDelivered
	if err := s.store.UpdateStatus(ctx, msg.ID, chatmodel.StatusDelivered); err != nil {
		logger.Errorf("persist delivered id=%s: %v", msg.ID.Hex(), err)
		msg.Status = chatmodel.StatusSent
		return msg, nil
	}

	// Mirror the transition to the sender's own session, if any.
	if err := s.pusher.EmitToUser(ctx, senderID, chat.EventStatusUpdate, msg); err != nil {
		logger.Errorf("push statusUpdate to %s: %v", senderID, err)
	}
	return msg, nil
}

// SendGroup persists a group message and pushes it to the group's room.
// No per-recipient status is tracked on the group path.
func (s *Conversations) SendGroup(ctx context.Context, senderID, groupID string, in SendInput) (*chatmodel.Message, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	g, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(senderID) {
		return nil, errs.ErrUnauthorized.WithDetail("not a group member")
	}

	msg := &chatmodel.Message{
		SenderID:    senderID,
		GroupID:     groupID,
		Text:        in.Text,
		ImageRef:    in.ImageRef,
		ClientMsgID: in.ClientMsgID,
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}

	// Room members render the sender inline, so expand it before the
	// push rather than leaving each client to resolve the id.
	ref, err := s.store.SenderRef(ctx, senderID)
	if err != nil {
		logger.Errorf("resolve sender %s: %v", senderID, err)
	} else {
		msg.Sender = ref
	}

	if err := s.pusher.EmitToRoom(ctx, groupID, chat.EventNewMessage, msg); err != nil {
		logger.Errorf("push group message room=%s: %v", groupID, err)
	}
	return msg, nil
}

// FetchConversation returns both directions of the direct conversation
// with otherID and marks the inbound side read (the read side-effect of
// opening a conversation).
func (s *Conversations) FetchConversation(ctx context.Context, myID, otherID string) ([]chatmodel.Message, error) {
	msgs, err := s.store.FindConversation(ctx, myID, otherID)
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	if err := s.MarkRead(ctx, myID, otherID); err != nil {
		// The response must not claim a status the store does not hold.
		logger.Errorf("mark read on fetch my=%s other=%s: %v", myID, otherID, err)
		return msgs, nil
	}
	// Reflect the bulk update in the returned slice without a re-read.
	for i := range msgs {
		if msgs[i].SenderID == otherID {
			msgs[i].Status = chatmodel.StatusRead
		}
	}
	return msgs, nil
}

// MarkRead bulk-transitions every unread message from otherID to myID
// and, when anything changed, notifies the original sender with a single
// conversationRead event. Idempotent: nothing to update is a success.
//
// A send racing this update may or may not be caught by the filter
// depending on commit visibility; both outcomes are accepted (the miss
// is repaired by the receiver's next fetch).
func (s *Conversations) MarkRead(ctx context.Context, myID, otherID string) error {
	n, err := s.store.MarkConversationRead(ctx, otherID, myID)
	if err != nil {
		return errs.ErrUpstream.WithDetail(err.Error())
	}
	if n == 0 {
		return nil
	}
	if err := s.pusher.EmitToUser(ctx, otherID, chat.EventConversationRead, chat.ReadReceipt{ReaderID: myID}); err != nil {
		logger.Errorf("push conversationRead to %s: %v", otherID, err)
	}
	return nil
}

// GroupMessages returns a group's history with senders expanded. Only
// members and invitees may read it.
func (s *Conversations) GroupMessages(ctx context.Context, myID, groupID string) ([]chatmodel.Message, error) {
	g, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(myID) && !g.HasPending(myID) {
		return nil, errs.ErrUnauthorized.WithDetail("not a group member")
	}
	msgs, err := s.store.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return msgs, nil
}

// Roster is the sidebar payload: every other user plus the caller's
// per-sender unseen counts.
type Roster struct {
	Users  []usermodel.Public `json:"users"`
	Unseen map[string]int64   `json:"unseenMessages"`
}

// ListUsers returns everyone except the caller plus per-sender unseen
// counts.
func (s *Conversations) ListUsers(ctx context.Context, myID string) (*Roster, error) {
	users, err := s.users.ListOthers(ctx, myID)
	if err != nil {
		return nil, err
	}
	unseen, err := s.store.CountUnseen(ctx, myID)
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return &Roster{Users: users, Unseen: unseen}, nil
}
