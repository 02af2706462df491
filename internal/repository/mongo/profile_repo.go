package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
	"github.com/vedran77/orbit/internal/repository/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileRepo struct {
	coll *mongo.Collection
	feed *changefeed.Broker
}

func NewProfileRepo(db *mongo.Database, feed *changefeed.Broker) *ProfileRepo {
	return &ProfileRepo{coll: db.Collection(profilesCollection), feed: feed}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *ProfileRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email_lower", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "search_grams", Value: 1}},
		},
	})
	return err
}

func (r *ProfileRepo) Create(ctx context.Context, profile *domain.Profile) error {
	_, err := r.coll.InsertOne(ctx, toProfileDoc(profile))
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"email_lower": emailKey(email)})
}

func (r *ProfileRepo) findOne(ctx context.Context, filter bson.M) (*domain.Profile, error) {
	var doc profileDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.profile()
}

func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, update repository.ProfileUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if update.DisplayName != nil {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return repository.ErrNotFound
		}
		fields, grams := search.FieldGrams(current.Email, *update.DisplayName)
		set["display_name"] = *update.DisplayName
		set["search_fields"] = fields
		set["search_grams"] = grams
	}
	if update.PhotoURL != nil {
		set["photo_url"] = *update.PhotoURL
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

func (r *ProfileRepo) SetMood(ctx context.Context, id uuid.UUID, mood *domain.Mood) error {
	if mood == nil {
		return r.updateOne(ctx, id, bson.M{
			"$unset": bson.M{"mood": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		})
	}
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"mood": toMoodDoc(mood), "updated_at": time.Now()}})
}

func (r *ProfileRepo) SetLocation(ctx context.Context, id uuid.UUID, loc domain.Location) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"location": toLocationDoc(&loc), "updated_at": time.Now()}})
}

func (r *ProfileRepo) updateOne(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProfileRepo) AddConnection(ctx context.Context, ownerID uuid.UUID, ref domain.ConnectionRef) (bool, error) {
	filter := bson.M{"_id": ownerID.String(), "connections.id": bson.M{"$ne": ref.ID.String()}}
	update := bson.M{
		"$push": bson.M{"connections": toConnectionDoc(ref)},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, res)
}

func (r *ProfileRepo) RemoveConnection(ctx context.Context, ownerID, peerID uuid.UUID) (bool, error) {
	filter := bson.M{"_id": ownerID.String(), "connections.id": peerID.String()}
	update := bson.M{
		"$pull": bson.M{"connections": bson.M{"id": peerID.String()}},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, res)
}

func (r *ProfileRepo) UpdateConnection(ctx context.Context, ownerID, peerID uuid.UUID, update repository.ConnectionUpdate) (bool, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.Nickname != nil {
		set["connections.$.nickname"] = *update.Nickname
	}
	if update.PhotoURL != nil {
		set["connections.$.photo_url"] = *update.PhotoURL
	}

	filter := bson.M{"_id": ownerID.String(), "connections.id": peerID.String()}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return r.changedOrMissing(ctx, ownerID, res)
}

// changedOrMissing turns an unmatched update into ErrNotFound when the owner itself
// is gone, and into false when only the array condition failed.
func (r *ProfileRepo) changedOrMissing(ctx context.Context, ownerID uuid.UUID, res *mongo.UpdateResult) (bool, error) {
	if res.MatchedCount > 0 {
		return true, nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": ownerID.String()})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, repository.ErrNotFound
	}
	return false, nil
}

// Search narrows candidates through the search_grams index, then confirms the
// substring against the folded fields.
func (r *ProfileRepo) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]domain.Profile, error) {
	q := search.Fold(query)
	filter := bson.M{
		"_id":           bson.M{"$ne": excludeID.String()},
		"search_fields": bson.M{"$regex": regexp.QuoteMeta(q)},
	}
	if grams := search.Trigrams(q); len(grams) > 0 {
		filter["search_grams"] = bson.M{"$all": grams}
	}
	opts := options.Find().SetSort(bson.D{{Key: "email_lower", Value: 1}}).SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	profiles := make([]domain.Profile, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.profile()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

func (r *ProfileRepo) WatchProfile(ctx context.Context, id uuid.UUID) (<-chan *domain.Profile, error) {
	return changefeed.Watch(ctx, r.feed, changefeed.ProfileKey(id), func(ctx context.Context) (*domain.Profile, error) {
		return r.GetByID(ctx, id)
	}), nil
}
