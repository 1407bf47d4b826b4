package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const UserTableName = "users"

// User is the identity record owned by the auth layer. The chat core
// only reads ID/DisplayName/AvatarRef.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DisplayName  string             `bson:"display_name" json:"displayName"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Bio          string             `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarRef    string             `bson:"avatar_ref,omitempty" json:"avatarRef,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

// Public is the credential-free view handed to other users.
type Public struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio,omitempty"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

func (u *User) ToPublic() Public {
	return Public{
		ID:          u.ID.Hex(),
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		AvatarRef:   u.AvatarRef,
	}
}
