package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/domain"
	"github.com/vedran77/orbit/internal/repository"
	"github.com/vedran77/orbit/internal/repository/changefeed"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RequestRepo struct {
	coll *mongo.Collection
	feed *changefeed.Broker
}

func NewRequestRepo(db *mongo.Database, feed *changefeed.Broker) *RequestRepo {
	return &RequestRepo{coll: db.Collection(requestsCollection), feed: feed}
}

// EnsureIndexes creates the partial unique index that allows one pending request
// per pair of users, whichever direction it goes.
func (r *RequestRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "pair", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": string(domain.RequestPending)}),
		},
		{Keys: bson.D{{Key: "to_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "from_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *RequestRepo) Create(ctx context.Context, req *domain.ConnectionRequest) error {
	_, err := r.coll.InsertOne(ctx, toRequestDoc(req))
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ConnectionRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *RequestRepo) FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*domain.ConnectionRequest, error) {
	return r.findOne(ctx, bson.M{"pair": pairKey(a, b), "status": string(domain.RequestPending)})
}

func (r *RequestRepo) findOne(ctx context.Context, filter bson.M) (*domain.ConnectionRequest, error) {
	var doc requestDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.request()
}

func (r *RequestRepo) Transition(ctx context.Context, id uuid.UUID, status domain.RequestStatus, at time.Time) (bool, error) {
	filter := bson.M{"_id": id.String(), "status": string(domain.RequestPending)}
	update := bson.M{"$set": bson.M{"status": string(status), "responded_at": at}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *RequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	return err
}

func (r *RequestRepo) DeleteBetween(ctx context.Context, a, b uuid.UUID) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"pair": pairKey(a, b)})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (r *RequestRepo) ListIncoming(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(ctx, bson.M{"to_id": userID.String(), "status": string(domain.RequestPending)})
}

func (r *RequestRepo) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	return r.list(ctx, bson.M{"from_id": userID.String(), "status": string(domain.RequestPending)})
}

func (r *RequestRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.ConnectionRequest, error) {
	id := userID.String()
	return r.list(ctx, bson.M{"$or": bson.A{bson.M{"from_id": id}, bson.M{"to_id": id}}})
}

func (r *RequestRepo) WatchRequests(ctx context.Context, userID uuid.UUID) (<-chan []domain.ConnectionRequest, error) {
	return changefeed.Watch(ctx, r.feed, changefeed.RequestsKey(userID), func(ctx context.Context) ([]domain.ConnectionRequest, error) {
		return r.ListForUser(ctx, userID)
	}), nil
}

func (r *RequestRepo) list(ctx context.Context, filter bson.M) ([]domain.ConnectionRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	reqs := make([]domain.ConnectionRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := doc.request()
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, nil
}
