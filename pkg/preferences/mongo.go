package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// MongoSource reads preferences from a collection keyed by user id.
type MongoSource struct {
	coll *mongo.Collection
}

func NewMongoSource(coll *mongo.Collection) *MongoSource {
	return &MongoSource{coll: coll}
}

func (s *MongoSource) Get(ctx context.Context, userID string) (*Preferences, error) {
	var p Preferences
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find preferences: %w", err)
	}
	return &p, nil
}

// Save replaces the document but keeps the stored last-contact map.
func (s *MongoSource) Save(ctx context.Context, p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	set := bson.D{
		{Key: "channels", Value: p.Channels},
		{Key: "preferredChannels", Value: p.PreferredChannels},
		{Key: "channelPriority", Value: p.ChannelPriority},
		{Key: "quietHours", Value: p.QuietHours},
		{Key: "skipQuietHoursForUrgent", Value: p.SkipQuietHoursForUrgent},
		{Key: "timezone", Value: p.Timezone},
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: p.UserID}},
		bson.D{{Key: "$set", Value: set}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *MongoSource) UpdateLastContact(ctx context.Context, userID string, ch notifications.Channel, at time.Time) error {
	if userID == "" {
		return notifications.Required("userId")
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "lastContact." + string(ch), Value: at.UTC()}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update last contact: %w", err)
	}
	return nil
}
