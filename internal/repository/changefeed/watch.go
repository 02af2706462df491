package changefeed

import (
	"context"

	"github.com/golang/glog"
)

// Watch emits load's result immediately and again after every signal on key, until
// ctx is done. The returned channel is closed when the watch ends. Load failures are
// logged and skipped; the next signal retries.
func Watch[T any](ctx context.Context, b *Broker, key string, load func(context.Context) (T, error)) <-chan T {
	signals, cancel := b.Subscribe(key)
	out := make(chan T, 1)

	go func() {
		defer close(out)
		defer cancel()

		for {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				glog.Warningf("[feed]%s load error = %s", key, err)
			} else {
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-signals:
				glog.V(2).Infof("[feed]%s changed", key)
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
