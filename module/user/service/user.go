package service

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	usermodel "QTalk/module/user/model"
	"QTalk/tools/errs"
	"QTalk/tools/security"
)

// Accounts is the auth collaborator at its boundary: signup, login,
// profile. The chat core only consumes ListOthers and GetByID.
type Accounts struct {
	coll *mongo.Collection
	jwt  security.Options
}

func NewAccounts(db *mongo.Database, jwt security.Options) *Accounts {
	return &Accounts{coll: db.Collection(usermodel.UserTableName), jwt: jwt}
}

type SignupInput struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Bio         string `json:"bio"`
}

type AuthResult struct {
	User     usermodel.User `json:"user"`
	Token    string         `json:"token"`
	ExpireAt time.Time      `json:"expireAt"`
}

func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.DisplayName == "" || in.Email == "" || in.Password == "" {
		return nil, errs.ErrValidation.WithDetail("displayName, email and password are required")
	}

	if err := a.coll.FindOne(ctx, bson.M{"email": in.Email}).Err(); err == nil {
		return nil, errs.ErrConflict.WithDetail("email already registered")
	} else if !pkgerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "hash password")
	}

	u := usermodel.User{
		ID:           primitive.NewObjectID(),
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		PasswordHash: string(hash),
		Bio:          in.Bio,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := a.coll.InsertOne(ctx, u); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return a.issue(u)
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errs.ErrValidation.WithDetail("email and password are required")
	}

	var u usermodel.User
	err := a.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if pkgerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUnauthorized.WithDetail("invalid credentials")
	}
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, errs.ErrUnauthorized.WithDetail("invalid credentials")
	}
	return a.issue(u)
}

func (a *Accounts) issue(u usermodel.User) (*AuthResult, error) {
	token, exp, err := security.Generate(a.jwt, u.ID.Hex())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "issue token")
	}
	return &AuthResult{User: u, Token: token, ExpireAt: exp}, nil
}

type ProfileUpdate struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	AvatarRef   string `json:"avatarRef"`
}

func (a *Accounts) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*usermodel.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrNotFound.WithDetail("bad user id")
	}

	set := bson.M{}
	if in.DisplayName != "" {
		set["display_name"] = in.DisplayName
	}
	if in.Bio != "" {
		set["bio"] = in.Bio
	}
	if in.AvatarRef != "" {
		set["avatar_ref"] = in.AvatarRef
	}
	if len(set) == 0 {
		return nil, errs.ErrValidation.WithDetail("nothing to update")
	}

	var u usermodel.User
	err = a.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if pkgerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("user " + userID)
	}
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return &u, nil
}

func (a *Accounts) GetByID(ctx context.Context, userID string) (*usermodel.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errs.ErrNotFound.WithDetail("bad user id")
	}
	var u usermodel.User
	err = a.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if pkgerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("user " + userID)
	}
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return &u, nil
}

// ListOthers returns every user except the caller, credential-free.
func (a *Accounts) ListOthers(ctx context.Context, excludeID string) ([]usermodel.Public, error) {
	filter := bson.M{}
	if oid, err := primitive.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}
	cur, err := a.coll.Find(ctx, filter)
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []usermodel.Public
	for cur.Next(ctx) {
		var u usermodel.User
		if err := cur.Decode(&u); err != nil {
			return nil, errs.ErrUpstream.WithDetail(err.Error())
		}
		out = append(out, u.ToPublic())
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return out, nil
}
