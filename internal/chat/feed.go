package chat

import (
	"context"
	"fmt"

	"pawchat/backend/internal/storage"
)

// Snapshot is one immutable delivery of a live query.
// When Err is set the view is degraded: Value is empty and Err wraps the cause.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Feed is a cancellable live query. The first snapshot is the current state;
// every relevant store change produces a fresh, fully recomputed snapshot.
// A consumer that falls behind only ever sees the newest pending snapshot.
type Feed[T any] struct {
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
}

// Updates yields snapshots until the feed stops, then is closed.
func (f *Feed[T]) Updates() <-chan Snapshot[T] { return f.updates }

// Done is closed once the feed has released its store subscription.
func (f *Feed[T]) Done() <-chan struct{} { return f.done }

// Close stops the feed and waits until no more loads or writes can happen.
func (f *Feed[T]) Close() {
	f.cancel()
	<-f.done
}

type loader[T any] func(ctx context.Context) (T, error)

// startFeed registers the store watch before the first load so no change slips
// between the initial snapshot and the subscription.
func startFeed[T any](ctx context.Context, store storage.Storage, topics []string, load loader[T]) (*Feed[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	w, err := store.Watch(ctx, topics...)
	if err != nil {
		cancel()
		return nil, storeErr(err)
	}

	f := &Feed[T]{
		updates: make(chan Snapshot[T], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go f.run(ctx, w, load)
	return f, nil
}

func (f *Feed[T]) run(ctx context.Context, w storage.Watcher, load loader[T]) {
	defer close(f.done)
	defer close(f.updates)
	defer w.Close()

	f.emit(ctx, load)
	events := w.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					f.push(Snapshot[T]{Err: fmt.Errorf("%w: change feed closed", ErrStoreUnavailable)})
				}
				return
			}
			// Collapse a burst of events into one reload.
		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			f.emit(ctx, load)
		}
	}
}

func (f *Feed[T]) emit(ctx context.Context, load loader[T]) {
	value, err := load(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		f.push(Snapshot[T]{Err: err})
		return
	}
	f.push(Snapshot[T]{Value: value})
}

// push replaces any undelivered snapshot with snap. run is the only sender.
func (f *Feed[T]) push(snap Snapshot[T]) {
	select {
	case f.updates <- snap:
		return
	default:
	}
	select {
	case <-f.updates:
	default:
	}
	f.updates <- snap
}
