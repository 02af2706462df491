package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/orbit/internal/repository/changefeed"
)

const (
	profileChannel = "profile_changed"
	requestChannel = "request_changed"

	reconnectDelay = 2 * time.Second
)

// Listener holds one pooled connection in LISTEN mode and turns the trigger
// notifications from schema.sql into change feed signals.
type Listener struct {
	pool *pgxpool.Pool
	feed *changefeed.Broker
}

func NewListener(pool *pgxpool.Pool, feed *changefeed.Broker) *Listener {
	return &Listener{pool: pool, feed: feed}
}

// Run listens until ctx is done, reconnecting after failures. After a reconnect
// every watcher is signalled, since notifications sent while disconnected are lost.
func (l *Listener) Run(ctx context.Context) {
	first := true
	for {
		err := l.listen(ctx, !first)
		if ctx.Err() != nil {
			return
		}
		first = false
		glog.Warningf("[pg]listener error = %s, reconnecting", err)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) listen(ctx context.Context, resync bool) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	for _, channel := range []string{profileChannel, requestChannel} {
		if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
			return err
		}
	}
	glog.Infof("[pg]listening on %s, %s", profileChannel, requestChannel)

	if resync {
		l.feed.PublishPrefix("")
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.dispatch(n)
	}
}

func (l *Listener) dispatch(n *pgconn.Notification) {
	switch n.Channel {
	case profileChannel:
		id, err := uuid.Parse(n.Payload)
		if err != nil {
			glog.Warningf("[pg]bad %s payload %q", n.Channel, n.Payload)
			return
		}
		l.feed.Publish(changefeed.ProfileKey(id))

	case requestChannel:
		from, to, ok := strings.Cut(n.Payload, ",")
		if !ok {
			glog.Warningf("[pg]bad %s payload %q", n.Channel, n.Payload)
			return
		}
		var keys []string
		for _, s := range []string{from, to} {
			if id, err := uuid.Parse(s); err == nil {
				keys = append(keys, changefeed.RequestsKey(id))
			}
		}
		l.feed.Publish(keys...)
	}
}
