package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const GroupTableName = "groups"

// Group is a chat group. Invariants maintained by the service layer:
// AdminID is always in Members; no user id appears in both Members and
// PendingMembers; membership only grows (no leave/kick).
type Group struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	AdminID        string             `bson:"admin_id" json:"adminId"`
	Members        []string           `bson:"members" json:"members"`
	PendingMembers []string           `bson:"pending_members" json:"pendingMembers"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
}

// HasMember reports whether the user has joined the group.
func (g *Group) HasMember(userID string) bool {
	return contains(g.Members, userID)
}

// HasPending reports whether the user holds an open invitation.
func (g *Group) HasPending(userID string) bool {
	return contains(g.PendingMembers, userID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
