package message

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	chatmodel "QTalk/module/chat/model"
	usermodel "QTalk/module/user/model"
)

// Store is the durable message collection. Insertion order (_id order)
// is the only ordering guarantee within a conversation.
type Store struct {
	MsgColl  *mongo.Collection
	UserColl *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		MsgColl:  db.Collection(chatmodel.MessageTableName),
		UserColl: db.Collection(usermodel.UserTableName),
	}
}

// Insert persists a new message, assigning its id and timestamp.
func (s *Store) Insert(ctx context.Context, m *chatmodel.Message) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.MsgColl.InsertOne(ctx, m)
	return errors.Wrap(err, "insert message")
}

// UpdateStatus sets the status of a single message.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.MsgColl.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
	)
	return errors.Wrap(err, "update message status")
}

// FindConversation returns both directions of a direct conversation in
// insertion order.
func (s *Store) FindConversation(ctx context.Context, userA, userB string) ([]chatmodel.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	cur, err := s.MsgColl.Find(ctx, filter, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	defer cur.Close(ctx)

	var msgs []chatmodel.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	return msgs, nil
}

// FindByGroup returns a group's messages in insertion order, with each
// sender expanded to a SenderRef at this boundary.
func (s *Store) FindByGroup(ctx context.Context, groupID string) ([]chatmodel.Message, error) {
	cur, err := s.MsgColl.Find(ctx,
		bson.M{"group_id": groupID},
		options.Find().SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "find group messages")
	}
	defer cur.Close(ctx)

	var msgs []chatmodel.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode group messages")
	}
	if err := s.expandSenders(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkConversationRead bulk-transitions every message from sender to
// receiver that is not yet read. Returns the number of modified records.
func (s *Store) MarkConversationRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	res, err := s.MsgColl.UpdateMany(ctx,
		bson.M{
			"sender_id":   senderID,
			"receiver_id": receiverID,
			"status":      bson.M{"$ne": chatmodel.StatusRead},
		},
		bson.M{"$set": bson.M{"status": chatmodel.StatusRead}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "mark conversation read")
	}
	return res.ModifiedCount, nil
}

// CountUnseen returns, per sender, how many direct messages addressed to
// the receiver are not yet read.
func (s *Store) CountUnseen(ctx context.Context, receiverID string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"receiver_id": receiverID,
			"status":      bson.M{"$ne": chatmodel.StatusRead},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$sender_id",
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.MsgColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "count unseen")
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			SenderID string `bson:"_id"`
			Count    int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode unseen row")
		}
		counts[row.SenderID] = row.Count
	}
	return counts, errors.Wrap(cur.Err(), "count unseen")
}

// SenderRef resolves a single sender for the send path; history reads
// resolve in batch via expandSenders. Unknown or malformed sender ids
// resolve to nil, matching the batch path.
func (s *Store) SenderRef(ctx context.Context, senderID string) (*chatmodel.SenderRef, error) {
	oid, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return nil, nil
	}
	var u usermodel.User
	err = s.UserColl.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve sender")
	}
	return &chatmodel.SenderRef{
		ID:          u.ID.Hex(),
		DisplayName: u.DisplayName,
		AvatarRef:   u.AvatarRef,
	}, nil
}

// expandSenders resolves SenderRefs for a batch in one users query.
func (s *Store) expandSenders(ctx context.Context, msgs []chatmodel.Message) error {
	ids := make([]primitive.ObjectID, 0, len(msgs))
	seen := make(map[string]bool)
	for i := range msgs {
		sid := msgs[i].SenderID
		if seen[sid] {
			continue
		}
		seen[sid] = true
		oid, err := primitive.ObjectIDFromHex(sid)
		if err != nil {
			continue
		}
		ids = append(ids, oid)
	}
	if len(ids) == 0 {
		return nil
	}

	cur, err := s.UserColl.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return errors.Wrap(err, "expand senders")
	}
	defer cur.Close(ctx)

	refs := make(map[string]*chatmodel.SenderRef)
	for cur.Next(ctx) {
		var u usermodel.User
		if err := cur.Decode(&u); err != nil {
			return errors.Wrap(err, "decode sender")
		}
		refs[u.ID.Hex()] = &chatmodel.SenderRef{
			ID:          u.ID.Hex(),
			DisplayName: u.DisplayName,
			AvatarRef:   u.AvatarRef,
		}
	}
	if err := cur.Err(); err != nil {
		return errors.Wrap(err, "expand senders")
	}
	for i := range msgs {
		msgs[i].Sender = refs[msgs[i].SenderID]
	}
	return nil
}
