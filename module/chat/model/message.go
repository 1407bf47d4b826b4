package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MessageTableName = "messages"

// Direct-message status lifecycle. Transitions are forward-only:
// sent -> delivered -> read. Group messages carry no status.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// statusRank orders the lifecycle for monotonicity checks.
var statusRank = map[string]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// StatusAdvances reports whether moving from to next goes forward.
func StatusAdvances(from, next string) bool {
	return statusRank[next] > statusRank[from]
}

// Message is one chat message, direct or group. Exactly one of
// ReceiverID / GroupID is set.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    string             `bson:"sender_id" json:"senderId"`
	ReceiverID  string             `bson:"receiver_id,omitempty" json:"receiverId,omitempty"`
	GroupID     string             `bson:"group_id,omitempty" json:"groupId,omitempty"`
	Text        string             `bson:"text,omitempty" json:"text,omitempty"`
	ImageRef    string             `bson:"image_ref,omitempty" json:"imageRef,omitempty"`
	ClientMsgID string             `bson:"client_msg_id,omitempty" json:"clientMsgId,omitempty"`
	Status      string             `bson:"status,omitempty" json:"status,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`

	// Sender is populated at the data-access boundary for group message
	// reads; never persisted.
	Sender *SenderRef `bson:"-" json:"sender,omitempty"`
}

// IsDirect reports whether the message is addressed to a single user.
func (m *Message) IsDirect() bool { return m.ReceiverID != "" }

// SenderRef is the expanded form of a sender reference: resolved once
// where messages are loaded, instead of ad hoc by every consumer.
type SenderRef struct {
	ID          string `bson:"id" json:"id"`
	DisplayName string `bson:"display_name" json:"displayName"`
	AvatarRef   string `bson:"avatar_ref,omitempty" json:"avatarRef,omitempty"`
}
