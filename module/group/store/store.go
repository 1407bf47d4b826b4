package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	groupmodel "QTalk/module/group/model"
	"QTalk/tools/errs"
)

// Store is the durable group collection.
type Store struct {
	Coll *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{Coll: db.Collection(groupmodel.GroupTableName)}
}

func (s *Store) Insert(ctx context.Context, g *groupmodel.Group) error {
	if g.ID.IsZero() {
		g.ID = primitive.NewObjectID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.Coll.InsertOne(ctx, g)
	return errors.Wrap(err, "insert group")
}

func (s *Store) FindByID(ctx context.Context, groupID string) (*groupmodel.Group, error) {
	oid, err := primitive.ObjectIDFromHex(groupID)
	if err != nil {
		return nil, errs.ErrNotFound.WithDetail("bad group id")
	}
	var g groupmodel.Group
	err = s.Coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound.WithDetail("group " + groupID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find group")
	}
	return &g, nil
}

// Save replaces the whole record. Membership mutations go through the
// service layer, which owns the invariants; no version field is used.
func (s *Store) Save(ctx context.Context, g *groupmodel.Group) error {
	_, err := s.Coll.ReplaceOne(ctx, bson.M{"_id": g.ID}, g)
	return errors.Wrap(err, "save group")
}

// FindForUser returns groups where the user is a member or an invitee.
func (s *Store) FindForUser(ctx context.Context, userID string) ([]groupmodel.Group, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"members": userID},
		bson.M{"pending_members": userID},
	}}
	cur, err := s.Coll.Find(ctx, filter, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find groups for user")
	}
	defer cur.Close(ctx)

	var groups []groupmodel.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, errors.Wrap(err, "decode groups")
	}
	return groups, nil
}

// FindMemberGroupIDs returns only the rooms a connection subscribes to:
// joined groups, not pending invitations.
func (s *Store) FindMemberGroupIDs(ctx context.Context, userID string) ([]string, error) {
	cur, err := s.Coll.Find(ctx, bson.M{"members": userID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find member groups")
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode group id")
		}
		ids = append(ids, row.ID.Hex())
	}
	return ids, errors.Wrap(cur.Err(), "find member groups")
}
