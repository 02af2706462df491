package mongo

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/vedran77/orbit/internal/repository/changefeed"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

const restartDelay = 2 * time.Second

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument *struct {
		FromID string `bson:"from_id"`
		ToID   string `bson:"to_id"`
	} `bson:"fullDocument"`
}

// Watcher tails the change streams of both collections and signals the broker.
// Change streams need a replica set.
type Watcher struct {
	db   *mongo.Database
	feed *changefeed.Broker
}

func NewWatcher(db *mongo.Database, feed *changefeed.Broker) *Watcher {
	return &Watcher{db: db, feed: feed}
}

func (w *Watcher) Run(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.loop(ctx, profilesCollection, w.profileChanged)
		return nil
	})
	g.Go(func() error {
		w.loop(ctx, requestsCollection, w.requestChanged)
		return nil
	})
	g.Wait()
}

func (w *Watcher) loop(ctx context.Context, collection string, handle func(changeEvent)) {
	first := true
	for {
		err := w.tail(ctx, collection, handle, !first)
		if ctx.Err() != nil {
			return
		}
		first = false
		glog.Warningf("[mongo]%s change stream error = %s, restarting", collection, err)

		select {
		case <-time.After(restartDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) tail(ctx context.Context, collection string, handle func(changeEvent), resync bool) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := w.db.Collection(collection).Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())
	glog.Infof("[mongo]watching %s", collection)

	if resync {
		w.feed.PublishPrefix("")
	}

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			glog.Warningf("[mongo]%s bad change event = %s", collection, err)
			continue
		}
		handle(ev)
	}
	return stream.Err()
}

func (w *Watcher) profileChanged(ev changeEvent) {
	id, err := uuid.Parse(ev.DocumentKey.ID)
	if err != nil {
		return
	}
	w.feed.Publish(changefeed.ProfileKey(id))
}

func (w *Watcher) requestChanged(ev changeEvent) {
	if ev.FullDocument == nil {
		// deletes carry only the key, so every request watcher reloads
		w.feed.PublishPrefix(changefeed.RequestsPrefix)
		return
	}
	var keys []string
	for _, s := range []string{ev.FullDocument.FromID, ev.FullDocument.ToID} {
		if id, err := uuid.Parse(s); err == nil {
			keys = append(keys, changefeed.RequestsKey(id))
		}
	}
	w.feed.Publish(keys...)
}
