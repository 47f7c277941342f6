package session

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Broadcaster owns the current State. Subscribers are called synchronously, in
// publish order, from the goroutine that publishes. A subscriber must not call
// Publish or Subscribe.
type Broadcaster struct {
	deliver     sync.Mutex // serialises Publish and Subscribe deliveries
	lock        sync.RWMutex
	current     State
	subscribers map[uint64]func(State)
	nextID      uint64
	logger      zerolog.Logger
}

type BroadcasterOption func(*Broadcaster)

func WithLogger(logger zerolog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// NewBroadcaster starts in the Anonymous state.
func NewBroadcaster(options ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		current:     Anonymous(),
		subscribers: make(map[uint64]func(State)),
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *Broadcaster) Current() State {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.current
}

// Subscribe registers fn and immediately calls it once with the current
// state.
func (b *Broadcaster) Subscribe(fn func(State)) *Subscription {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.lock.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[id] = fn
	current := b.current
	b.lock.Unlock()

	b.call(id, fn, current)
	return &Subscription{broadcaster: b, id: id}
}

// Publish makes state current and notifies every subscriber. Publishing a
// state equal to the current one notifies nobody and returns false.
func (b *Broadcaster) Publish(state State) bool {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.lock.Lock()
	if b.current.Equal(state) {
		b.lock.Unlock()
		return false
	}
	b.current = state
	ids := make([]uint64, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	fns := make(map[uint64]func(State), len(ids))
	for _, id := range ids {
		fns[id] = b.subscribers[id]
	}
	b.lock.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	b.logger.Debug().Stringer("state", state).Int("subscribers", len(ids)).Msg("session state changed")
	for _, id := range ids {
		b.call(id, fns[id], state)
	}
	return true
}

func (b *Broadcaster) call(id uint64, fn func(State), state State) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Uint64("subscriber", id).Interface("panic", r).Msg("session subscriber panicked")
		}
	}()
	fn(state)
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.subscribers, id)
}

// Subscription is returned by Subscribe.
type Subscription struct {
	broadcaster *Broadcaster
	id          uint64
	once        sync.Once
}

// Unsubscribe stops further deliveries. It is safe to call more than once and
// from inside the subscriber.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broadcaster.unsubscribe(s.id)
	})
}
